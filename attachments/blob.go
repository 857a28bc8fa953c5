/*
blob.go - Blob storage abstraction behind record attachments

PURPOSE:
  A thin S3-like interface so attachments (and scheduled backups) can
  live on local disk, in S3/MinIO, or in memory for tests.

DRIVERS:
  fs      Local filesystem with a .meta JSON sidecar per object (default)
  s3      S3 or any S3-compatible endpoint (MinIO)
  memory  Process memory, tests only

SEMANTICS:
  Put is create-only: writing an existing key fails with ErrExists.
  List returns objects whose key starts with prefix, sorted by key.

SEE ALSO:
  - service.go: Attachment bookkeeping on top of a BlobStore
  - factory.go: Driver selection from config
*/
package attachments

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// BlobStore is the storage contract used by the attachment service.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blob already exists")
)

func cloneMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
