package attachments

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a blob driver.
type Config struct {
	Driver string // fs | s3 | memory; empty means fs
	FSRoot string
	S3     S3Config
}

// Open constructs the configured blob store.
func Open(ctx context.Context, cfg Config) (BlobStore, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(cfg.Driver))) {
	case "", DriverFilesystem:
		return NewFSStore(cfg.FSRoot)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
