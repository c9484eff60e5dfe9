package gateway

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // MinIO, LocalStack 等自建服务
	Prefix   string
}

// S3Backend maps an S3 bucket onto the gateway model: the object key is the
// file id and every ancestor key prefix ("a", "a/b") counts as a parent
// folder, so allowing "a" allows the whole subtree.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Backend{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (b *S3Backend) key(id string) string {
	if b.prefix == "" {
		return id
	}
	return b.prefix + "/" + id
}

func (b *S3Backend) List(ctx context.Context, q Query) ([]RemoteFile, error) {
	limit := q.PageSize
	full := func(n int) bool { return limit > 0 && n >= limit }

	var roots []string
	switch {
	case q.FolderID != "":
		roots = []string{q.FolderID}
	case len(q.Folders) > 0:
		roots = q.Folders
	default:
		roots = []string{""}
	}

	seen := make(map[string]struct{})
	var out []RemoteFile
	for _, root := range roots {
		prefix := b.prefix
		if root != "" {
			prefix = strings.TrimPrefix(b.key(root)+"/", "/")
		} else if prefix != "" {
			prefix += "/"
		}
		p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(b.bucket),
			Prefix: aws.String(prefix),
		})
		for p.HasMorePages() && !full(len(out)) {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			for _, obj := range page.Contents {
				id := strings.TrimPrefix(strings.TrimPrefix(aws.ToString(obj.Key), b.prefix), "/")
				if strings.HasSuffix(id, "/") {
					continue
				}
				if _, dup := seen[id]; dup {
					continue
				}
				f := RemoteFile{
					ID:       id,
					Name:     path.Base(id),
					MimeType: mimeByExt(id),
					Size:     aws.ToInt64(obj.Size),
					Parents:  ancestors(id),
				}
				if obj.LastModified != nil {
					f.ModifiedTime = obj.LastModified.UTC()
				}
				if q.FolderID != "" && !contains(f.Parents, q.FolderID) {
					continue
				}
				if q.NameContains != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(q.NameContains)) {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, f)
				if full(len(out)) {
					break
				}
			}
		}
	}
	return out, nil
}

func (b *S3Backend) Get(ctx context.Context, fileID string) (*RemoteFile, error) {
	res, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(fileID)),
	})
	if err != nil {
		return nil, s3Err(err, fileID)
	}
	f := &RemoteFile{
		ID:       fileID,
		Name:     path.Base(fileID),
		MimeType: aws.ToString(res.ContentType),
		Size:     aws.ToInt64(res.ContentLength),
		Parents:  ancestors(fileID),
	}
	if f.MimeType == "" || f.MimeType == "application/octet-stream" || f.MimeType == "binary/octet-stream" {
		f.MimeType = mimeByExt(fileID)
	}
	if res.LastModified != nil {
		f.ModifiedTime = res.LastModified.UTC()
	}
	return f, nil
}

func (b *S3Backend) Download(ctx context.Context, file *RemoteFile) (io.ReadCloser, error) {
	res, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(file.ID)),
	})
	if err != nil {
		return nil, s3Err(err, file.ID)
	}
	return res.Body, nil
}

func s3Err(err error, id string) error {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return errors.Wrapf(ErrNotFound, "object %s", id)
	}
	return err
}

// ancestors("a/b/c.pdf") = ["a", "a/b"]
func ancestors(id string) []string {
	dir := path.Dir(id)
	if dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(dir, "/")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "/"))
	}
	return out
}

func mimeByExt(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
