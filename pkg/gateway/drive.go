package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	driveFileFields = "id, name, mimeType, modifiedTime, webViewLink, size, parents, trashed"
	googleDocMime   = "application/vnd.google-apps.document"
	docxMime        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DriveBackend reads files through the Google Drive v3 API using a
// read-only service account.
type DriveBackend struct {
	srv *drive.Service
}

func NewDriveBackend(ctx context.Context, credentialsFile string) (*DriveBackend, error) {
	srv, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create drive service")
	}
	return &DriveBackend{srv: srv}, nil
}

func (d *DriveBackend) List(ctx context.Context, q Query) ([]RemoteFile, error) {
	limit := q.PageSize
	pageSize := limit
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}

	var (
		out   []RemoteFile
		token string
	)
	for {
		call := d.srv.Files.List().
			Q(driveQuery(q)).
			PageSize(int64(pageSize)).
			Fields(googleapi.Field("nextPageToken, files(" + driveFileFields + ")")).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		res, err := call.Do()
		if err != nil {
			return nil, driveErr(err)
		}
		for _, f := range res.Files {
			out = append(out, fromDrive(f))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		token = res.NextPageToken
		if token == "" {
			return out, nil
		}
	}
}

func (d *DriveBackend) Get(ctx context.Context, fileID string) (*RemoteFile, error) {
	f, err := d.srv.Files.Get(fileID).
		Fields(googleapi.Field(driveFileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, driveErr(err)
	}
	rf := fromDrive(f)
	return &rf, nil
}

// Download streams file content. Native Google Docs have no binary content
// and are exported as docx instead.
func (d *DriveBackend) Download(ctx context.Context, file *RemoteFile) (io.ReadCloser, error) {
	var (
		res *http.Response
		err error
	)
	if file.MimeType == googleDocMime {
		res, err = d.srv.Files.Export(file.ID, docxMime).Context(ctx).Download()
	} else {
		res, err = d.srv.Files.Get(file.ID).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return nil, driveErr(err)
	}
	return res.Body, nil
}

func fromDrive(f *drive.File) RemoteFile {
	rf := RemoteFile{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		DownloadLink: f.WebViewLink,
		Size:         f.Size,
		Parents:      f.Parents,
		Trashed:      f.Trashed,
	}
	if f.MimeType == googleDocMime {
		rf.MimeType = docxMime
		if !strings.HasSuffix(strings.ToLower(rf.Name), ".docx") {
			rf.Name += ".docx"
		}
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		rf.ModifiedTime = t
	}
	return rf
}

func driveErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return errors.Wrap(ErrNotFound, gerr.Message)
	}
	return err
}

// driveQuery renders q in Drive search syntax, e.g.
//
//	'F1' in parents and name contains 'S500' and trashed = false
func driveQuery(q Query) string {
	var parts []string
	if q.FolderID != "" {
		parts = append(parts, quote(q.FolderID)+" in parents")
	}
	if q.NameContains != "" {
		parts = append(parts, "name contains "+quote(q.NameContains))
	}
	if q.FolderID == "" && len(q.Folders) > 0 {
		ors := make([]string, 0, len(q.Folders))
		for _, f := range q.Folders {
			ors = append(ors, quote(f)+" in parents")
		}
		parts = append(parts, "("+strings.Join(ors, " or ")+")")
	}
	parts = append(parts, "trashed = false")
	return strings.Join(parts, " and ")
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}
