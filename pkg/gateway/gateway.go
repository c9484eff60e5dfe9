// Package gateway gives permission-scoped access to a remote file store.
//
// A Backend speaks one concrete protocol (Google Drive, S3, in-memory).
// Gateway layers the folder allow-list on top: every file it hands out has
// at least one parent in the allow-list, unless the allow-list is empty.
package gateway

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cometwk/standards/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var xlog = logrus.WithField("module", "gateway")

const DefaultPageSize = 100

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("file not found")
)

// TransientError wraps a backend or network failure. It is surfaced to the
// caller as-is; the gateway never retries.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RemoteFile is a point-in-time snapshot of a remote file's metadata.
type RemoteFile struct {
	ID           string    `json:"fileId"`
	Name         string    `json:"fileName"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
	DownloadLink string    `json:"downloadLink,omitempty"`
	Size         int64     `json:"size"`
	Parents      []string  `json:"-"`
	Trashed      bool      `json:"-"`
}

// Query is the conjunction of list predicates. Folders, when set, is a
// disjunction: the file must sit in at least one of them. PageSize <= 0
// means no limit: the backend follows every page.
type Query struct {
	FolderID     string
	NameContains string
	Folders      []string
	PageSize     int
}

type Backend interface {
	List(ctx context.Context, q Query) ([]RemoteFile, error)
	// Get returns ErrNotFound (possibly wrapped) for unknown ids.
	Get(ctx context.Context, fileID string) (*RemoteFile, error)
	Download(ctx context.Context, file *RemoteFile) (io.ReadCloser, error)
}

type Gateway struct {
	backend Backend
	allowed []string
	allow   map[string]struct{}
}

func New(backend Backend, allowedFolders []string) *Gateway {
	g := &Gateway{
		backend: backend,
		allow:   make(map[string]struct{}, len(allowedFolders)),
	}
	for _, f := range allowedFolders {
		if f = strings.TrimSpace(f); f != "" {
			g.allowed = append(g.allowed, f)
			g.allow[f] = struct{}{}
		}
	}
	return g
}

// AllowedFolders returns a copy of the allow-list; empty means open mode.
func (g *Gateway) AllowedFolders() []string {
	return append([]string(nil), g.allowed...)
}

func (g *Gateway) permitted(parents []string) bool {
	if len(g.allow) == 0 {
		return true
	}
	for _, p := range parents {
		if _, ok := g.allow[p]; ok {
			return true
		}
	}
	return false
}

// CheckPermission resolves the file's parents and checks them against the
// allow-list.
func (g *Gateway) CheckPermission(ctx context.Context, fileID string) error {
	_, err := g.GetMetadata(ctx, fileID)
	return err
}

// GetMetadata fetches metadata and enforces the allow-list.
func (g *Gateway) GetMetadata(ctx context.Context, fileID string) (*RemoteFile, error) {
	f, err := g.backend.Get(ctx, fileID)
	if err != nil {
		err = classify("get", err)
		metrics.GatewayCalls.WithLabelValues("get", metrics.Outcome(err)).Inc()
		return nil, err
	}
	metrics.GatewayCalls.WithLabelValues("get", "ok").Inc()
	if !g.permitted(f.Parents) {
		xlog.WithField("fileId", fileID).Warn("文件不在允许的目录中")
		return nil, errors.Wrapf(ErrPermissionDenied, "file %s", fileID)
	}
	return f, nil
}

// List lists visible, non-trashed files, at most DefaultPageSize of them.
// With no folder given the query is constrained to the union of the
// allowed folders.
func (g *Gateway) List(ctx context.Context, folderID, nameContains string) ([]RemoteFile, error) {
	return g.list(ctx, Query{FolderID: folderID, NameContains: nameContains, PageSize: DefaultPageSize})
}

// ListAll follows every result page across all allowed folders.
func (g *Gateway) ListAll(ctx context.Context) ([]RemoteFile, error) {
	return g.list(ctx, Query{})
}

func (g *Gateway) list(ctx context.Context, q Query) ([]RemoteFile, error) {
	if q.FolderID != "" {
		if len(g.allow) > 0 {
			if _, ok := g.allow[q.FolderID]; !ok {
				return nil, errors.Wrapf(ErrPermissionDenied, "folder %s", q.FolderID)
			}
		}
	} else {
		q.Folders = g.AllowedFolders()
	}

	files, err := g.backend.List(ctx, q)
	err = classify("list", err)
	metrics.GatewayCalls.WithLabelValues("list", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	// backend 已按查询过滤, 这里再兜底一次, 绝不泄露允许范围之外的文件
	out := files[:0]
	for _, f := range files {
		if !f.Trashed && g.permitted(f.Parents) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Download checks permission before any transfer and returns the metadata
// snapshot alongside the content stream. The caller closes the stream.
func (g *Gateway) Download(ctx context.Context, fileID string) (*RemoteFile, io.ReadCloser, error) {
	f, err := g.GetMetadata(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := g.backend.Download(ctx, f)
	err = classify("download", err)
	metrics.GatewayCalls.WithLabelValues("download", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, nil, err
	}
	return f, rc, nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied) {
		return err
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}
