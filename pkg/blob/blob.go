// Package blob defines a minimal object store with compare-and-swap writes.
package blob

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("blob: object not found")
	ErrPreconditionFailed = errors.New("blob: precondition failed")
)

// Token identifies one revision of an object. The empty token stands for
// "object does not exist".
type Token string

// Store is implemented by every backend.
type Store interface {
	// Get returns the content and revision token. A missing object returns ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, Token, error)
	// Put writes data only if the current revision equals ifMatch. An empty ifMatch
	// requires the object to be absent. A mismatch returns ErrPreconditionFailed.
	Put(ctx context.Context, path string, data []byte, ifMatch Token, opts ...WriteOption) (Token, error)
	// Overwrite writes data unconditionally.
	Overwrite(ctx context.Context, path string, data []byte, opts ...WriteOption) (Token, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// WriteOptions is object metadata. Backends without metadata ignore it.
type WriteOptions struct {
	ContentType string
}

// WriteOption configures a single write.
type WriteOption func(*WriteOptions)

// WithContentType sets the MIME type stored with the object.
func WithContentType(ct string) WriteOption {
	return func(o *WriteOptions) {
		o.ContentType = ct
	}
}

// ApplyWriteOptions folds opts over the zero WriteOptions.
func ApplyWriteOptions(opts []WriteOption) WriteOptions {
	var o WriteOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
