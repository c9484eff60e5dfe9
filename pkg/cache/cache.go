// Package cache keeps downloaded remote files on local disk.
//
// Entries are content-addressed by sha256(fileId) plus the original file
// extension, expire after a fixed TTL measured from the last write, and are
// bounded in aggregate size. Files are written to a temp file and renamed
// into place, so a reader never sees a partial entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cometwk/standards/pkg/gateway"
	"github.com/cometwk/standards/pkg/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var xlog = logrus.WithField("module", "cache")

const (
	tmpDirName          = ".tmp"
	DefaultMetadataSize = 1000
)

// Source is the remote side of the cache. *gateway.Gateway implements it.
type Source interface {
	GetMetadata(ctx context.Context, fileID string) (*gateway.RemoteFile, error)
	Download(ctx context.Context, fileID string) (*gateway.RemoteFile, io.ReadCloser, error)
}

type Options struct {
	Dir          string
	TTL          time.Duration
	MaxBytes     int64
	MetadataSize int
	// Now 仅测试时替换
	Now func() time.Time
}

// Result describes a cached file. Bytes are never returned through it.
type Result struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
	FilePath string `json:"filePath"`
	Cached   bool   `json:"cached"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
}

type LocalCache struct {
	src      Source
	dir      string
	tmpDir   string
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time

	// mu 保护磁盘上的增删 (rename/cleanup/clear) 以及 readers
	mu      sync.Mutex
	readers map[string]int

	flight singleflight.Group
	meta   *expirable.LRU[string, gateway.RemoteFile]
}

func New(src Source, opts Options) (*LocalCache, error) {
	if opts.TTL <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	if opts.MaxBytes <= 0 {
		return nil, errors.New("cache max size must be positive")
	}
	if opts.MetadataSize <= 0 {
		opts.MetadataSize = DefaultMetadataSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &LocalCache{
		src:      src,
		dir:      opts.Dir,
		tmpDir:   filepath.Join(opts.Dir, tmpDirName),
		ttl:      opts.TTL,
		maxBytes: opts.MaxBytes,
		now:      opts.Now,
		readers:  make(map[string]int),
		meta:     expirable.NewLRU[string, gateway.RemoteFile](opts.MetadataSize, nil, opts.TTL),
	}
	if err := os.MkdirAll(c.tmpDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache dir %s", c.dir)
	}
	return c, nil
}

func (c *LocalCache) Dir() string { return c.dir }

func (c *LocalCache) TTL() time.Duration { return c.ttl }

func (c *LocalCache) MaxBytes() int64 { return c.maxBytes }

// ClearMetadata drops every entry of the in-process metadata cache.
func (c *LocalCache) ClearMetadata() { c.meta.Purge() }

func (c *LocalCache) age(t time.Time) time.Duration { return c.now().Sub(t) }

// Key is the hex sha256 of the remote file id.
func Key(fileID string) string {
	sum := sha256.Sum256([]byte(fileID))
	return hex.EncodeToString(sum[:])
}

// PathFor returns the cache path for a file, keeping the extension of name.
func (c *LocalCache) PathFor(fileID, name string) string {
	return filepath.Join(c.dir, Key(fileID)+filepath.Ext(name))
}

// GetMetadata serves from the in-process metadata cache, falling back to
// the remote source. Only metadata that passed the permission check is
// cached.
func (c *LocalCache) GetMetadata(ctx context.Context, fileID string) (*gateway.RemoteFile, error) {
	if f, ok := c.meta.Get(fileID); ok {
		metrics.CacheLookups.WithLabelValues("metadata", "hit").Inc()
		return &f, nil
	}
	metrics.CacheLookups.WithLabelValues("metadata", "miss").Inc()
	f, err := c.src.GetMetadata(ctx, fileID)
	if err != nil {
		return nil, err
	}
	c.meta.Add(fileID, *f)
	return f, nil
}

// valid reports whether path holds an entry younger than the TTL.
func (c *LocalCache) valid(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return info, c.age(info.ModTime()) < c.ttl
}

// Download returns a descriptor of the cached copy of fileID, fetching it
// when there is no fresh entry or useCache is false.
func (c *LocalCache) Download(ctx context.Context, fileID string, useCache bool) (*Result, error) {
	res, h, err := c.Fetch(ctx, fileID, useCache)
	if err != nil {
		return nil, err
	}
	h.Close()
	return res, nil
}

// Fetch is Download plus an open Handle on the entry. While the handle is
// open the entry is never evicted. The caller must Close it.
func (c *LocalCache) Fetch(ctx context.Context, fileID string, useCache bool) (*Result, *Handle, error) {
	meta, err := c.GetMetadata(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	path := c.PathFor(fileID, meta.Name)

	if useCache {
		if h, info, ok := c.openFresh(path); ok {
			metrics.CacheLookups.WithLabelValues("file", "hit").Inc()
			xlog.WithField("fileId", fileID).Debug("命中缓存")
			return &Result{
				FileName: meta.Name,
				FileID:   fileID,
				FilePath: path,
				Cached:   true,
				Size:     info.Size(),
				MimeType: meta.MimeType,
			}, h, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("file", "miss").Inc()

	// 同一文件的并发下载合并为一次. fn 在发起者的 goroutine 中同步执行,
	// 只有发起者拿到 own, 即下载时就已锁定的句柄
	var own *Handle
	v, err, _ := c.flight.Do(fileID, func() (any, error) {
		res, h, err := c.fetchRemote(ctx, fileID, path)
		own = h
		return res, err
	})
	if err != nil {
		return nil, nil, err
	}
	res := *v.(*Result)
	if own != nil {
		return &res, own, nil
	}

	// 合并的调用者自己打开; 若恰好在这之间被清理, 再下载一次
	h, err := c.Open(res.FilePath)
	if err == nil {
		return &res, h, nil
	}
	fresh, h, err := c.fetchRemote(ctx, fileID, path)
	if err != nil {
		return nil, nil, err
	}
	return fresh, h, nil
}

func (c *LocalCache) openFresh(path string) (*Handle, os.FileInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.valid(path)
	if !ok {
		return nil, nil, false
	}
	h, err := c.openLocked(path)
	if err != nil {
		return nil, nil, false
	}
	return h, info, true
}

// fetchRemote 写入缓存并返回已锁定的句柄, 从 rename 起该文件就不会被清理
func (c *LocalCache) fetchRemote(ctx context.Context, fileID, path string) (*Result, *Handle, error) {
	meta, rc, err := c.src.Download(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	// 远程文件名可能已变化
	path = c.PathFor(fileID, meta.Name)

	tmp, err := os.CreateTemp(c.tmpDir, Key(fileID)+"-*")
	if err != nil {
		return nil, nil, errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, err := io.Copy(tmp, rc)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "write %s", fileID)
	}

	c.mu.Lock()
	var h *Handle
	err = os.Rename(tmpName, path)
	if err == nil {
		h, err = c.openLocked(path)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, nil, errors.Wrap(err, "rename into cache")
	}

	if _, err := c.Cleanup(); err != nil {
		xlog.WithError(err).Warn("缓存清理失败")
	}

	c.meta.Add(fileID, *meta)
	xlog.WithField("fileId", fileID).Infof("已下载 %s (%d bytes)", meta.Name, size)
	return &Result{
		FileName: meta.Name,
		FileID:   fileID,
		FilePath: path,
		Cached:   false,
		Size:     size,
		MimeType: meta.MimeType,
	}, h, nil
}
