package gateway

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// MemoryBackend keeps files in process memory. It backs local development
// (GATEWAY_BACKEND=memory) and tests.
type MemoryBackend struct {
	mu        sync.Mutex
	files     map[string]RemoteFile
	content   map[string][]byte
	failures  map[string]error
	downloads map[string]int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		files:     make(map[string]RemoteFile),
		content:   make(map[string][]byte),
		failures:  make(map[string]error),
		downloads: make(map[string]int),
	}
}

// Put adds or replaces a file; Size is taken from data.
func (m *MemoryBackend) Put(f RemoteFile, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Size = int64(len(data))
	m.files[f.ID] = f
	m.content[f.ID] = append([]byte(nil), data...)
}

// FailDownload makes every download of fileID return err until cleared with nil.
func (m *MemoryBackend) FailDownload(fileID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, fileID)
		return
	}
	m.failures[fileID] = err
}

// Downloads reports how many times fileID content was fetched.
func (m *MemoryBackend) Downloads(fileID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloads[fileID]
}

func (m *MemoryBackend) List(ctx context.Context, q Query) ([]RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RemoteFile
	for _, f := range m.files {
		if matches(f, q) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if q.PageSize > 0 && len(out) > q.PageSize {
		out = out[:q.PageSize]
	}
	return out, nil
}

func matches(f RemoteFile, q Query) bool {
	if f.Trashed {
		return false
	}
	if q.FolderID != "" && !contains(f.Parents, q.FolderID) {
		return false
	}
	if q.NameContains != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(q.NameContains)) {
		return false
	}
	if len(q.Folders) > 0 {
		for _, folder := range q.Folders {
			if contains(f.Parents, folder) {
				return true
			}
		}
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *MemoryBackend) Get(ctx context.Context, fileID string) (*RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "file %s", fileID)
	}
	f.Parents = append([]string(nil), f.Parents...)
	return &f, nil
}

func (m *MemoryBackend) Download(ctx context.Context, file *RemoteFile) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[file.ID]; err != nil {
		return nil, err
	}
	data, ok := m.content[file.ID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "file %s", file.ID)
	}
	m.downloads[file.ID]++
	return io.NopCloser(bytes.NewReader(data)), nil
}
