package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible backend (MinIO, R2, AWS).
type S3Config struct {
	Endpoint  string // host[:port], e.g. minio:9000
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// PublicURL is the base URL objects are reachable under. When empty
	// the backend hands out presigned GET URLs instead.
	PublicURL     string
	PresignExpiry time.Duration
	// Prefix is prepended to object keys (default: "sources").
	Prefix string
}

// S3 uploads documents to a bucket.
type S3 struct {
	client        *minio.Client
	bucket        string
	prefix        string
	publicURL     string
	presignExpiry time.Duration
}

// NewS3 creates an S3-compatible backend. No network calls are made.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "sources"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        strings.Trim(cfg.Prefix, "/"),
		publicURL:     strings.TrimSuffix(cfg.PublicURL, "/"),
		presignExpiry: cfg.PresignExpiry,
	}, nil
}

func (s *S3) Name() string { return BackendS3 }

// Upload stores the file under a unique key and returns a fetchable URL.
func (s *S3) Upload(ctx context.Context, f File) (string, error) {
	key := s.objectKey(f.Name)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)), minio.PutObjectOptions{
		ContentType: f.MimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", path.Base(key)))
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}
	return u.String(), nil
}

func (s *S3) objectKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "document"
	}
	return s.prefix + "/" + uuid.NewString() + "/" + base
}
