// Package gcs implements blob.Store on Google Cloud Storage using object
// generations as revision tokens.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"MacoPull/pkg/blob"
)

// Option configures the GCS store.
type Option func(*Config)

// Config holds GCS store configuration.
type Config struct {
	Bucket          string
	CredentialsFile string
	ContentType     string
}

// WithCredentialsFile authenticates with a service account key instead of ADC.
func WithCredentialsFile(path string) Option {
	return func(c *Config) {
		c.CredentialsFile = path
	}
}

// WithContentType sets the content type for writes that do not carry their own.
func WithContentType(ct string) Option {
	return func(c *Config) {
		c.ContentType = ct
	}
}

type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    Config
}

var _ blob.Store = (*Store)(nil)

// New connects to GCS using application default credentials unless a key file is set.
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	cfg := Config{Bucket: bucket, ContentType: "application/octet-stream"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs: bucket required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: new client: %w", err)
	}
	return &Store{client: client, bucket: client.Bucket(cfg.Bucket), cfg: cfg}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, blob.Token, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", blob.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("gcs: open %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("gcs: read %s: %w", path, err)
	}
	return data, generationToken(r.Attrs.Generation), nil
}

func (s *Store) Put(ctx context.Context, path string, data []byte, ifMatch blob.Token, opts ...blob.WriteOption) (blob.Token, error) {
	cond := storage.Conditions{DoesNotExist: true}
	if ifMatch != "" {
		gen, err := strconv.ParseInt(string(ifMatch), 10, 64)
		if err != nil {
			return "", fmt.Errorf("gcs: bad token %q: %w", ifMatch, blob.ErrPreconditionFailed)
		}
		cond = storage.Conditions{GenerationMatch: gen}
	}
	return s.write(ctx, s.bucket.Object(path).If(cond), data, s.contentType(opts))
}

func (s *Store) Overwrite(ctx context.Context, path string, data []byte, opts ...blob.WriteOption) (blob.Token, error) {
	return s.write(ctx, s.bucket.Object(path), data, s.contentType(opts))
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gcs: attrs %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) contentType(opts []blob.WriteOption) string {
	if ct := blob.ApplyWriteOptions(opts).ContentType; ct != "" {
		return ct
	}
	return s.cfg.ContentType
}

func (s *Store) write(ctx context.Context, obj *storage.ObjectHandle, data []byte, contentType string) (blob.Token, error) {
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", classify(err)
	}
	if err := w.Close(); err != nil {
		return "", classify(err)
	}
	return generationToken(w.Attrs().Generation), nil
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return blob.ErrPreconditionFailed
	}
	return fmt.Errorf("gcs: write: %w", err)
}

func generationToken(gen int64) blob.Token {
	return blob.Token(strconv.FormatInt(gen, 10))
}
