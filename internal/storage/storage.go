// Package storage keeps converted PDFs (and job inputs) either on the local
// disk or in S3, optionally encrypted at rest.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/local/sheetsplit/internal/filetype"

	"github.com/local/sheetsplit/internal/config"
)

// ErrNotFound is returned by Open for unknown keys.
var ErrNotFound = errors.New("object not found")

// Meta describes a stored object.
type Meta struct {
	Name        string            `json:"name"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Encrypted   bool              `json:"encrypted"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Store saves and loads blobs by key.
type Store interface {
	Save(ctx context.Context, key string, data []byte, meta Meta) error
	Open(ctx context.Context, key string) (io.ReadCloser, Meta, error)
	// Ping reports whether the backend is reachable and writable.
	Ping(ctx context.Context) error
}

// New builds the backend selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.LocalDir, cfg.Password)
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			Prefix:    cfg.Prefix,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PathStyle: cfg.PathStyle,
			Password:  cfg.Password,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// fillMeta completes size and content type from the payload.
func fillMeta(meta Meta, data []byte) Meta {
	meta.Size = int64(len(data))
	if meta.ContentType == "" {
		meta.ContentType = filetype.Detect(data).MIMEType
	}
	return meta
}

// cleanKey rejects empty, absolute and parent-relative keys.
func cleanKey(key string) (string, error) {
	k := path.Clean(strings.ReplaceAll(key, `\`, "/"))
	if key == "" || k == "." || strings.HasPrefix(k, "/") || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}
