package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MacoPull/internal/domain/models"
	domrepo "MacoPull/internal/domain/repository"
	"MacoPull/pkg/blob"
	applogger "MacoPull/pkg/logger"
)

// BlobSeriesStore keeps one CSV object per symbol under prefix.
type BlobSeriesStore struct {
	store  blob.Store
	prefix string
	l      *applogger.Logger
}

var _ domrepo.SeriesStore = (*BlobSeriesStore)(nil)

func NewBlobSeriesStore(store blob.Store, prefix string, l *applogger.Logger) *BlobSeriesStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &BlobSeriesStore{store: store, prefix: prefix, l: l}
}

func (s *BlobSeriesStore) Read(ctx context.Context, symbol string) (models.Series, domrepo.Version, error) {
	start := time.Now()
	p := seriesPath(s.prefix, symbol)
	data, tok, err := s.store.Get(ctx, p)
	if errors.Is(err, blob.ErrNotFound) {
		s.l.Debug("series not found", applogger.String("symbol", symbol), applogger.String("path", p))
		return models.Series{Symbol: symbol}, "", nil
	}
	if err != nil {
		return models.Series{}, "", fmt.Errorf("read series %s: %w", symbol, err)
	}
	series, stats, err := DecodeSeries(symbol, data)
	if err != nil {
		return models.Series{}, "", err
	}
	if stats.Skipped > 0 || stats.Duplicates > 0 {
		s.l.Warn("series object needed cleanup",
			applogger.String("symbol", symbol),
			applogger.Int("skipped_rows", stats.Skipped),
			applogger.Int("duplicate_rows", stats.Duplicates),
		)
	}
	s.l.Debug("series read",
		applogger.String("symbol", symbol),
		applogger.Int("bars", series.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return series, domrepo.Version(tok), nil
}

func (s *BlobSeriesStore) Write(ctx context.Context, series models.Series, expect domrepo.Version) (domrepo.Version, error) {
	data, err := EncodeSeries(series)
	if err != nil {
		return "", err
	}
	p := seriesPath(s.prefix, series.Symbol)
	tok, err := s.store.Put(ctx, p, data, blob.Token(expect), blob.WithContentType(seriesContentType))
	if errors.Is(err, blob.ErrPreconditionFailed) {
		return "", fmt.Errorf("write series %s: %w", series.Symbol, domrepo.ErrConflict)
	}
	if err != nil {
		return "", fmt.Errorf("write series %s: %w", series.Symbol, err)
	}
	s.l.Debug("series written",
		applogger.String("symbol", series.Symbol),
		applogger.Int("bars", series.Len()),
		applogger.Int("bytes", len(data)),
	)
	return domrepo.Version(tok), nil
}
