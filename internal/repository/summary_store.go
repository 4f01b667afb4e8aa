package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"MacoPull/internal/domain/models"
	domrepo "MacoPull/internal/domain/repository"
	"MacoPull/pkg/blob"
)

// BlobSummaryStore writes per-symbol summary JSON and the aggregate object.
type BlobSummaryStore struct {
	store  blob.Store
	prefix string
}

var _ domrepo.SummaryStore = (*BlobSummaryStore)(nil)

func NewBlobSummaryStore(store blob.Store, prefix string) *BlobSummaryStore {
	return &BlobSummaryStore{store: store, prefix: prefix}
}

func (s *BlobSummaryStore) WriteSummary(ctx context.Context, sum models.Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if _, err := s.store.Overwrite(ctx, summaryPath(s.prefix, sum.Symbol), data, blob.WithContentType(summaryContentType)); err != nil {
		return fmt.Errorf("write summary %s: %w", sum.Symbol, err)
	}
	return nil
}

func (s *BlobSummaryStore) ReadSummary(ctx context.Context, symbol string) (models.Summary, error) {
	var sum models.Summary
	if err := s.readJSON(ctx, summaryPath(s.prefix, symbol), &sum); err != nil {
		return models.Summary{}, fmt.Errorf("read summary %s: %w", symbol, err)
	}
	return sum, nil
}

func (s *BlobSummaryStore) WriteAll(ctx context.Context, all map[string]models.Summary) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshal summaries: %w", err)
	}
	if _, err := s.store.Overwrite(ctx, aggregatePath(s.prefix), data, blob.WithContentType(summaryContentType)); err != nil {
		return fmt.Errorf("write aggregate summary: %w", err)
	}
	return nil
}

// ReadAll returns an empty map when no aggregate has been written yet.
func (s *BlobSummaryStore) ReadAll(ctx context.Context) (map[string]models.Summary, error) {
	p := aggregatePath(s.prefix)
	ok, err := s.store.Exists(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("stat aggregate summary: %w", err)
	}
	if !ok {
		return map[string]models.Summary{}, nil
	}
	all := map[string]models.Summary{}
	err = s.readJSON(ctx, p, &all)
	// removed between the existence check and the read
	if errors.Is(err, domrepo.ErrNotFound) {
		return map[string]models.Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read aggregate summary: %w", err)
	}
	return all, nil
}

func (s *BlobSummaryStore) readJSON(ctx context.Context, p string, dst interface{}) error {
	data, _, err := s.store.Get(ctx, p)
	if errors.Is(err, blob.ErrNotFound) {
		return domrepo.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", domrepo.ErrMalformed, err)
	}
	return nil
}
