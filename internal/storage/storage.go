package storage

import (
	"context"
	"io"
	"time"
)

// UploadOptions conveys metadata for a single object upload.
type UploadOptions struct {
	ContentType  string
	CacheControl string
}

// Service stores user uploaded files (avatars) in object storage.
type Service interface {
	Upload(ctx context.Context, key string, body io.Reader, opts UploadOptions) (string, error)
	DeletePrefix(ctx context.Context, prefix string) error
	GetObjectURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
