package repository

import (
	"context"
	"time"

	"MacoPull/internal/domain/models"
)

// Version is the opaque revision token of a stored series. The zero value means
// "object does not exist yet".
type Version string

// MarketData fetches daily bars from an upstream provider.
type MarketData interface {
	// Fetch returns bars in [from, to) for the canonical symbol.
	Fetch(ctx context.Context, symbol, resolution string, from, to time.Time) ([]models.Bar, error)
	// Ping performs one cheap call to tell a misconfigured or unreachable provider
	// apart from an empty range.
	Ping(ctx context.Context) error
	Name() string
}

// SeriesStore persists one series per symbol under optimistic concurrency control.
type SeriesStore interface {
	// Read returns the stored series and its version. A missing object yields an
	// empty series and the zero Version.
	Read(ctx context.Context, symbol string) (models.Series, Version, error)
	// Write replaces the series only if the stored version still equals expect.
	// A mismatch returns ErrConflict.
	Write(ctx context.Context, s models.Series, expect Version) (Version, error)
}

// SummaryStore persists the per-symbol summaries and their aggregate.
type SummaryStore interface {
	WriteSummary(ctx context.Context, s models.Summary) error
	ReadSummary(ctx context.Context, symbol string) (models.Summary, error)
	WriteAll(ctx context.Context, all map[string]models.Summary) error
	ReadAll(ctx context.Context) (map[string]models.Summary, error)
}

// WarehouseSink appends analytical rows. It never updates existing rows.
type WarehouseSink interface {
	Append(ctx context.Context, rows []models.WarehouseRow) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.WarehouseRow, error)
	Close() error
}

// SignalPublisher emits a signal event per successful symbol.
type SignalPublisher interface {
	Publish(ctx context.Context, ev models.SignalEvent) error
	Close() error
}

// RunLock guards against overlapping invocations.
type RunLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordSymbol(symbol, status string)
	RecordBarsAdded(symbol string, n int)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordRun(status string, seconds float64)
}
