package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vk/kiln/internal/coordinate"
)

// S3Config locates a Maven2-layout repository stored in an S3 bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Repository fetches files from an S3 compatible object store.
type S3Repository struct {
	name   string
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Repository validates cfg and creates the client. No request is made
// until the first Fetch.
func NewS3Repository(name string, cfg S3Config) (*S3Repository, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("repository %q: s3 endpoint is required", name)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("repository %q: s3 bucket is required", name)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	opts := &minio.Options{Secure: cfg.UseSSL, Region: region}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access != "" || secret != "" {
		if access == "" || secret == "" {
			return nil, fmt.Errorf("repository %q: s3 access key and secret key must be set together", name)
		}
		opts.Creds = credentials.NewStaticV4(access, secret, "")
	} else {
		opts.Creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("repository %q: init s3 client: %w", name, err)
	}
	return &S3Repository{
		name:   name,
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

// Name implements Repository.
func (r *S3Repository) Name() string {
	return r.name
}

// Key returns the object key of coord's file with extension ext.
func (r *S3Repository) Key(coord coordinate.Coordinate, ext string) string {
	if r.prefix == "" {
		return Path(coord, ext)
	}
	return r.prefix + "/" + Path(coord, ext)
}

// Fetch implements Fetcher.
func (r *S3Repository) Fetch(ctx context.Context, coord coordinate.Coordinate, ext string) ([]byte, error) {
	key := r.Key(coord, ext)
	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, r.downloadError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, r.downloadError(key, err)
	}
	return data, nil
}

func (r *S3Repository) downloadError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
		return &DownloadError{Repository: r.name, Path: key, Status: http.StatusNotFound, Message: resp.Code}
	case resp.StatusCode != 0:
		return &DownloadError{Repository: r.name, Path: key, Status: resp.StatusCode, Message: resp.Code, Err: err}
	}
	return &DownloadError{Repository: r.name, Path: key, Status: http.StatusBadGateway, Err: err}
}
