// Package attachments stores proof-of-payment files uploaded at checkout. Orders
// only keep the returned reference.
package attachments

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("attachment not found")

type Store interface {
	// Save stores r under a fresh name derived from filename and returns its
	// reference.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Remove(ctx context.Context, ref string) error
}

// newName keeps a short alphanumeric extension of the uploaded filename and
// replaces the rest with a random id.
func newName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	for _, r := range strings.TrimPrefix(ext, ".") {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			ext = ""
			break
		}
	}
	return uuid.New().String() + ext
}

// New returns an S3 store when s3cfg names a bucket and a local store rooted at
// dir otherwise.
func New(ctx context.Context, dir string, s3cfg S3Config) (Store, error) {
	if s3cfg.Bucket != "" {
		s, err := NewS3Store(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	return s, nil
}
