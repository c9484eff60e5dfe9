package cache

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Handle is an open cache entry. Cleanup skips entries with open handles.
type Handle struct {
	*os.File
	c    *LocalCache
	path string
	once sync.Once
}

func (h *Handle) Path() string { return h.path }

func (h *Handle) Close() error {
	var err error
	h.once.Do(func() {
		err = h.File.Close()
		h.c.release(h.path)
	})
	return err
}

// Open opens a cache entry for reading and pins it until Close.
func (c *LocalCache) Open(path string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked(path)
}

func (c *LocalCache) openLocked(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open cache entry")
	}
	c.readers[path]++
	return &Handle{File: f, c: c, path: path}, nil
}

func (c *LocalCache) release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readers[path] <= 1 {
		delete(c.readers, path)
		return
	}
	c.readers[path]--
}

func (c *LocalCache) inUse(path string) bool {
	return c.readers[path] > 0
}
