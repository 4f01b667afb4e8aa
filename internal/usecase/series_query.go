package usecase

import (
	"context"
	"fmt"

	"MacoPull/internal/domain/models"
	drepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/services/forecast"
	"MacoPull/internal/services/maco"
)

const (
	defaultSeriesLimit = 250
	maxSeriesLimit     = 5000
)

// SeriesQuery serves stored bars annotated with averages and signals.
type SeriesQuery struct {
	store    drepo.SeriesStore
	engine   maco.Engine
	lookback int
}

func NewSeriesQuery(store drepo.SeriesStore, short, long, lookback int) *SeriesQuery {
	return &SeriesQuery{store: store, engine: maco.New(short, long), lookback: lookback}
}

type GetSeriesParams struct {
	Symbol string
	Limit  int
}

type GetSeriesResult struct {
	Symbol    string
	Total     int
	Count     int
	NextClose *float64
	Records   []models.SignalRecord
}

// GetSeries computes signals over the whole stored series, then returns the last
// Limit records so the averages at the window start are fully warmed up.
func (q *SeriesQuery) GetSeries(ctx context.Context, p GetSeriesParams) (*GetSeriesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Limit <= 0 {
		p.Limit = defaultSeriesLimit
	}
	if p.Limit > maxSeriesLimit {
		p.Limit = maxSeriesLimit
	}

	series, _, err := q.store.Read(ctx, p.Symbol)
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	if series.Empty() {
		return nil, fmt.Errorf("series %s: %w", p.Symbol, drepo.ErrNotFound)
	}

	recs := q.engine.Compute(series)
	if len(recs) > p.Limit {
		recs = recs[len(recs)-p.Limit:]
	}
	return &GetSeriesResult{
		Symbol:    p.Symbol,
		Total:     series.Len(),
		Count:     len(recs),
		NextClose: optionPtr(forecast.NextClose(series.Closes(), q.lookback)),
		Records:   recs,
	}, nil
}
