// Package storage wraps object storage used for attachments and site photos.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectStore is implemented by MinIOStorage and MemoryStore.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
}
