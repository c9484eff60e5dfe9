package gateway

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend() *MemoryBackend {
	m := NewMemoryBackend()
	m.Put(RemoteFile{ID: "a1", Name: "S500 Water Damage.pdf", MimeType: "application/pdf", Parents: []string{"F1"}}, []byte("a1"))
	m.Put(RemoteFile{ID: "b1", Name: "S520 Mould.docx", MimeType: docxMime, Parents: []string{"F2"}}, []byte("b1"))
	m.Put(RemoteFile{ID: "c1", Name: "Private S700.pdf", MimeType: "application/pdf", Parents: []string{"F3"}}, []byte("c1"))
	m.Put(RemoteFile{ID: "t1", Name: "S500 old.pdf", MimeType: "application/pdf", Parents: []string{"F1"}, Trashed: true}, []byte("t1"))
	return m
}

func ids(files []RemoteFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.ID)
	}
	return out
}

func TestCheckPermission(t *testing.T) {
	ctx := context.Background()
	g := New(newBackend(), []string{"F1", "F2"})

	require.NoError(t, g.CheckPermission(ctx, "a1"))
	require.NoError(t, g.CheckPermission(ctx, "b1"))

	err := g.CheckPermission(ctx, "c1")
	assert.True(t, errors.Is(err, ErrPermissionDenied))

	err = g.CheckPermission(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	// 空允许列表 = 开放模式
	open := New(newBackend(), nil)
	require.NoError(t, open.CheckPermission(ctx, "c1"))
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("受限模式只列出允许目录", func(t *testing.T) {
		g := New(newBackend(), []string{"F1", "F2"})
		files, err := g.List(ctx, "", "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a1", "b1"}, ids(files))
	})

	t.Run("开放模式列出全部未删除文件", func(t *testing.T) {
		g := New(newBackend(), nil)
		files, err := g.List(ctx, "", "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a1", "b1", "c1"}, ids(files))
	})

	t.Run("按名称搜索", func(t *testing.T) {
		g := New(newBackend(), []string{"F1", "F2"})
		files, err := g.List(ctx, "", "s520")
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, ids(files))
	})

	t.Run("指定目录", func(t *testing.T) {
		g := New(newBackend(), []string{"F1", "F2"})
		files, err := g.List(ctx, "F1", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids(files))

		_, err = g.List(ctx, "F3", "")
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	m := newBackend()
	g := New(m, []string{"F1"})

	f, rc, err := g.Download(ctx, "a1")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "a1", string(data))
	assert.Equal(t, "S500 Water Damage.pdf", f.Name)

	// 权限检查失败时不发生下载
	_, _, err = g.Download(ctx, "c1")
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.Equal(t, 0, m.Downloads("c1"))

	m.FailDownload("a1", errors.New("connection reset"))
	_, _, err = g.Download(ctx, "a1")
	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "download", te.Op)
}

func TestDriveQuery(t *testing.T) {
	assert.Equal(t,
		"'F1' in parents and name contains 'S500' and trashed = false",
		driveQuery(Query{FolderID: "F1", NameContains: "S500", Folders: []string{"F1", "F2"}}))
	assert.Equal(t,
		"('F1' in parents or 'F2' in parents) and trashed = false",
		driveQuery(Query{Folders: []string{"F1", "F2"}}))
	assert.Equal(t, "trashed = false", driveQuery(Query{}))
	assert.Equal(t,
		`name contains 'it\'s \\ here' and trashed = false`,
		driveQuery(Query{NameContains: `it's \ here`}))
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"a", "a/b"}, ancestors("a/b/c.pdf"))
	assert.Nil(t, ancestors("c.pdf"))
}

func TestRateLimited(t *testing.T) {
	m := newBackend()
	assert.Same(t, m, NewRateLimited(m, 0))

	b := NewRateLimited(m, 1000)
	g := New(b, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := g.GetMetadata(ctx, "a1")
	require.NoError(t, err)
}

func TestListAllFollowsPages(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	for i := 0; i < DefaultPageSize+20; i++ {
		m.Put(RemoteFile{ID: fmt.Sprintf("f%03d", i), Name: fmt.Sprintf("S%03d.pdf", 500+i), Parents: []string{"F1"}}, nil)
	}
	m.Put(RemoteFile{ID: "x", Name: "S999.pdf", Parents: []string{"F9"}}, nil)
	g := New(m, []string{"F1"})

	page, err := g.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, page, DefaultPageSize)

	all, err := g.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, DefaultPageSize+20)
	assert.NotContains(t, ids(all), "x")
}
