// Package imagestore persists uploaded food images and reads them back for
// the /uploads route.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Open when no object has the given name.
var ErrNotFound = errors.New("image not found")

// ErrInvalidName is returned for names that are not a single path element.
var ErrInvalidName = errors.New("invalid image name")

// Object is an opened stored image. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store saves and opens images by flat name.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
	Open(ctx context.Context, name string) (*Object, error)
}

// Config selects an image store backend.
type Config struct {
	Type string   `mapstructure:"type" json:"type"` // "disk" or "s3"
	S3   S3Config `mapstructure:"s3" json:"s3"`
}

// New creates the store described by cfg. uploadDir is used by the disk backend.
func New(ctx context.Context, cfg Config, uploadDir string) (Store, error) {
	switch cfg.Type {
	case "", "disk":
		return NewDisk(uploadDir)
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported image store type: %s", cfg.Type)
	}
}

// ValidName reports whether name is a plain file name with no path parts.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
