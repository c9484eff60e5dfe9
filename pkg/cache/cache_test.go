package cache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cometwk/standards/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, maxBytes int64, allowed ...string) (*LocalCache, *gateway.MemoryBackend) {
	t.Helper()
	m := gateway.NewMemoryBackend()
	m.Put(gateway.RemoteFile{ID: "f1", Name: "S500.pdf", MimeType: "application/pdf", Parents: []string{"F1"}}, []byte(strings.Repeat("a", 100)))
	m.Put(gateway.RemoteFile{ID: "f2", Name: "S520.docx", MimeType: "application/docx", Parents: []string{"F1"}}, []byte(strings.Repeat("b", 100)))
	m.Put(gateway.RemoteFile{ID: "f3", Name: "notes.txt", MimeType: "text/plain", Parents: []string{"F1"}}, []byte(strings.Repeat("c", 100)))
	m.Put(gateway.RemoteFile{ID: "x1", Name: "secret.pdf", MimeType: "application/pdf", Parents: []string{"F9"}}, []byte("x"))

	c, err := New(gateway.New(m, allowed), Options{
		Dir:      t.TempDir(),
		TTL:      time.Hour,
		MaxBytes: maxBytes,
	})
	require.NoError(t, err)
	return c, m
}

// 把文件的写入时间往前推
func backdate(t *testing.T, path string, d time.Duration) {
	t.Helper()
	ts := time.Now().Add(-d)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestKeyAndPath(t *testing.T) {
	c, _ := setup(t, 1<<20)
	assert.Len(t, Key("f1"), 64)
	assert.Equal(t, Key("f1"), Key("f1"))
	assert.NotEqual(t, Key("f1"), Key("f2"))

	p := c.PathFor("f1", "Water Damage.PDF")
	assert.Equal(t, filepath.Join(c.Dir(), Key("f1")+".PDF"), p)
}

func TestDownloadFreshness(t *testing.T) {
	ctx := context.Background()
	c, m := setup(t, 1<<20)

	r, err := c.Download(ctx, "f1", true)
	require.NoError(t, err)
	assert.False(t, r.Cached)
	assert.Equal(t, int64(100), r.Size)
	assert.Equal(t, "S500.pdf", r.FileName)
	assert.FileExists(t, r.FilePath)
	assert.Equal(t, 1, m.Downloads("f1"))

	// TTL 内再次下载命中缓存, 不访问远程
	r, err = c.Download(ctx, "f1", true)
	require.NoError(t, err)
	assert.True(t, r.Cached)
	assert.Equal(t, 1, m.Downloads("f1"))

	// useCache=false 强制刷新
	r, err = c.Download(ctx, "f1", false)
	require.NoError(t, err)
	assert.False(t, r.Cached)
	assert.Equal(t, 2, m.Downloads("f1"))

	// 过期后重新下载
	backdate(t, r.FilePath, 2*time.Hour)
	r, err = c.Download(ctx, "f1", true)
	require.NoError(t, err)
	assert.False(t, r.Cached)
	assert.Equal(t, 3, m.Downloads("f1"))
}

func TestDownloadPermission(t *testing.T) {
	ctx := context.Background()
	c, m := setup(t, 1<<20, "F1")

	_, err := c.Download(ctx, "x1", true)
	assert.True(t, errors.Is(err, gateway.ErrPermissionDenied))
	assert.Equal(t, 0, m.Downloads("x1"))

	_, err = c.Download(ctx, "missing", true)
	assert.True(t, errors.Is(err, gateway.ErrNotFound))

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.FileCount)
}

func TestMetadataCache(t *testing.T) {
	ctx := context.Background()
	c, m := setup(t, 1<<20)

	f, err := c.GetMetadata(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "S500.pdf", f.Name)

	// 远程改名后仍返回缓存的元数据
	m.Put(gateway.RemoteFile{ID: "f1", Name: "renamed.pdf", Parents: []string{"F1"}}, []byte("z"))
	f, err = c.GetMetadata(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "S500.pdf", f.Name)

	c.ClearMetadata()
	f, err = c.GetMetadata(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "renamed.pdf", f.Name)
}

func TestCleanupExpiredFirst(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, 1<<20)

	r1, err := c.Download(ctx, "f1", true)
	require.NoError(t, err)
	r2, err := c.Download(ctx, "f2", true)
	require.NoError(t, err)

	backdate(t, r1.FilePath, 3*time.Hour)
	res, err := c.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 0, res.Evicted)
	assert.NoFileExists(t, r1.FilePath)
	assert.FileExists(t, r2.FilePath)
}

func TestCleanupSizeCap(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, 250)

	r1, err := c.Download(ctx, "f1", true)
	require.NoError(t, err)
	r2, err := c.Download(ctx, "f2", true)
	require.NoError(t, err)
	backdate(t, r1.FilePath, 30*time.Minute)
	backdate(t, r2.FilePath, 20*time.Minute)

	// 第三个文件写入后超过 250 bytes, 淘汰最旧的 f1
	r3, err := c.Download(ctx, "f3", true)
	require.NoError(t, err)
	assert.NoFileExists(t, r1.FilePath)
	assert.FileExists(t, r2.FilePath)
	assert.FileExists(t, r3.FilePath)

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.FileCount)

	res, err := c.Cleanup()
	require.NoError(t, err)
	assert.LessOrEqual(t, res.TotalBytes, int64(250))
	assert.Equal(t, 0, res.Evicted, "no eviction needed once under the cap")
}

func TestCleanupSkipsOpenEntries(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, 150)

	r1, h, err := c.Fetch(ctx, "f1", true)
	require.NoError(t, err)
	backdate(t, r1.FilePath, 3*time.Hour)

	_, err = c.Cleanup()
	require.NoError(t, err)
	assert.FileExists(t, r1.FilePath, "open entry must survive cleanup")

	data, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Len(t, data, 100)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err = c.Cleanup()
	require.NoError(t, err)
	assert.NoFileExists(t, r1.FilePath)
}

func TestFreshDownloadPinnedUntilClose(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, 1<<20)

	path := c.PathFor("f1", "S500.pdf")
	res, h, err := c.fetchRemote(ctx, "f1", path)
	require.NoError(t, err)
	assert.False(t, res.Cached)

	// 下载返回到调用者读取之间, 清空缓存也不能删掉它
	removed, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 0, removed.FileCount)
	assert.FileExists(t, res.FilePath)

	data, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Len(t, data, 100)
	require.NoError(t, h.Close())

	removed, err = c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, removed.FileCount)
	assert.NoFileExists(t, res.FilePath)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, 1<<20)

	_, err := c.Download(ctx, "f1", true)
	require.NoError(t, err)
	_, err = c.Download(ctx, "f2", true)
	require.NoError(t, err)
	assert.Equal(t, 2, c.meta.Len())

	removed, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, removed.FileCount)
	assert.Equal(t, 0.0, removed.TotalSizeMB)
	assert.Equal(t, 0, c.meta.Len())

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.FileCount)
	assert.Equal(t, 1.0, st.TTLHours)
	assert.Equal(t, c.Dir(), st.Path)
}

func TestConcurrentDownload(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, 1<<20)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, h, err := c.Fetch(ctx, "f2", true)
			if !assert.NoError(t, err) {
				return
			}
			defer h.Close()
			data, err := io.ReadAll(h)
			assert.NoError(t, err)
			assert.Len(t, data, int(r.Size))
		}()
	}
	wg.Wait()

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.FileCount)
}

func TestToMB(t *testing.T) {
	assert.Equal(t, 1.0, toMB(1024*1024))
	assert.Equal(t, 1.5, toMB(1024*1024*3/2))
	assert.Equal(t, 0.01, toMB(10*1024))
}
