package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"

	"MacoPull/internal/domain/models"
	drepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/services/forecast"
	"MacoPull/internal/services/maco"
	"MacoPull/internal/services/merge"
	applogger "MacoPull/pkg/logger"
)

// PipelineConfig carries the batch settings.
type PipelineConfig struct {
	Symbols          []string
	Resolution       drepo.Resolution
	ShortWindow      int
	LongWindow       int
	ForecastLookback int
	SeedHorizon      time.Duration
	FailureBackoff   time.Duration
	ConflictRetries  int

	LockEnabled bool
	LockKey     string
	LockTTL     time.Duration
}

// PipelineOption configures optional collaborators.
type PipelineOption func(*Pipeline)

// WithWarehouse appends one analytical row per successful symbol.
func WithWarehouse(w drepo.WarehouseSink) PipelineOption {
	return func(p *Pipeline) { p.warehouse = w }
}

// WithPublisher emits one signal event per successful symbol.
func WithPublisher(pub drepo.SignalPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithRunLock guards Run against overlapping invocations.
func WithRunLock(l drepo.RunLock) PipelineOption {
	return func(p *Pipeline) { p.lock = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithSleeper replaces the context-aware wait used between failed symbols.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) PipelineOption {
	return func(p *Pipeline) { p.sleep = sleep }
}

// Pipeline ingests, merges, persists and derives signals for every configured
// symbol, one at a time.
type Pipeline struct {
	cfg       PipelineConfig
	market    drepo.MarketData
	series    drepo.SeriesStore
	summaries drepo.SummaryStore
	warehouse drepo.WarehouseSink
	publisher drepo.SignalPublisher
	lock      drepo.RunLock
	metrics   drepo.Metrics
	engine    maco.Engine
	l         *applogger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

func NewPipeline(
	cfg PipelineConfig,
	market drepo.MarketData,
	series drepo.SeriesStore,
	summaries drepo.SummaryStore,
	metrics drepo.Metrics,
	l *applogger.Logger,
	opts ...PipelineOption,
) *Pipeline {
	if cfg.Resolution == "" {
		cfg.Resolution = drepo.ResolutionDaily
	}
	if cfg.ForecastLookback <= 0 {
		cfg.ForecastLookback = forecast.DefaultLookback
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	p := &Pipeline{
		cfg:       cfg,
		market:    market,
		series:    series,
		summaries: summaries,
		metrics:   metrics,
		engine:    maco.New(cfg.ShortWindow, cfg.LongWindow),
		l:         l,
		now:       time.Now,
		sleep:     sleepCtx,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one batch. It returns an error only when the run could not start
// (lock held or lock backend failure); everything else is reported in the result.
func (p *Pipeline) Run(ctx context.Context) (*models.BatchResult, error) {
	res := &models.BatchResult{RunID: p.newID(), StartedAt: p.now().UTC()}
	log := p.l.With(applogger.String("run_id", res.RunID))

	if p.cfg.LockEnabled && p.lock != nil {
		ok, err := p.lock.TryLock(ctx, p.cfg.LockKey, p.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			log.Warn("run already in progress", applogger.String("lock", p.cfg.LockKey))
			return nil, drepo.ErrRunInProgress
		}
		defer func() {
			if err := p.lock.Unlock(context.WithoutCancel(ctx), p.cfg.LockKey); err != nil {
				log.Warn("release run lock", applogger.Error(err))
			}
		}()
	}

	start := time.Now()
	defer func() {
		status := "ok"
		if res.Failed() {
			status = "failed"
		}
		p.metrics.RecordRun(status, time.Since(start).Seconds())
	}()

	log.Info("pipeline run started",
		applogger.String("provider", p.market.Name()),
		applogger.Strings("symbols", p.cfg.Symbols),
	)

	if err := p.market.Ping(ctx); err != nil {
		res.Aborted = true
		if errors.Is(err, drepo.ErrAuth) {
			res.Error = fmt.Sprintf("provider authentication failed: %v", err)
			p.metrics.RecordError("auth")
		} else {
			res.Error = fmt.Sprintf("provider unreachable: %v", err)
			p.metrics.RecordError("unreachable")
		}
		res.FinishedAt = p.now().UTC()
		log.Error("self-check failed, run aborted", applogger.Error(err))
		return res, nil
	}

	fresh := make(map[string]models.Summary, len(p.cfg.Symbols))
	for i, sym := range p.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			res.Aborted = true
			res.Error = fmt.Sprintf("run cancelled: %v", err)
			break
		}

		out, sum, err := p.runSymbol(ctx, res.RunID, sym)
		if err != nil {
			out.Error = err.Error()
			res.Outcomes = append(res.Outcomes, out)
			p.metrics.RecordSymbol(sym, "error")
			p.metrics.RecordError(errorKind(err))
			log.Error("symbol failed", applogger.String("symbol", sym), applogger.Error(err))

			if errors.Is(err, drepo.ErrAuth) {
				res.Aborted = true
				res.Error = fmt.Sprintf("provider authentication failed: %v", err)
				break
			}
			if i < len(p.cfg.Symbols)-1 {
				_ = p.sleep(ctx, p.cfg.FailureBackoff)
			}
			continue
		}
		if sum != nil {
			fresh[sym] = *sum
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	if len(res.Outcomes) > 0 {
		if err := p.writeAggregate(ctx, fresh); err != nil {
			res.Error = fmt.Sprintf("write aggregate summary: %v", err)
			p.metrics.RecordError("persist")
			log.Error("aggregate summary not written", applogger.Error(err))
		}
	}

	res.FinishedAt = p.now().UTC()
	log.Info("pipeline run finished",
		applogger.Int("symbols", len(res.Outcomes)),
		applogger.Int("added", res.Added()),
		applogger.Bool("failed", res.Failed()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return res, nil
}

// runSymbol performs read, window, fetch, merge, persist and derive for one symbol.
func (p *Pipeline) runSymbol(ctx context.Context, runID, sym string) (models.SymbolOutcome, *models.Summary, error) {
	out := models.SymbolOutcome{Symbol: sym}
	log := p.l.With(applogger.String("run_id", runID), applogger.String("symbol", sym))

	var (
		series models.Series
		added  int
		err    error
	)
	for attempt := 0; ; attempt++ {
		series, added, err = p.ingest(ctx, sym, log)
		if errors.Is(err, drepo.ErrConflict) && attempt < p.cfg.ConflictRetries {
			log.Warn("series changed concurrently, retrying", applogger.Int("attempt", attempt+1))
			continue
		}
		break
	}
	if err != nil {
		return out, nil, err
	}

	out.Added = added
	out.Kept = series.Len()
	p.metrics.RecordBarsAdded(sym, added)

	if series.Empty() {
		log.Info("no stored bars yet, nothing to derive")
		p.metrics.RecordSymbol(sym, "empty")
		return out, nil, nil
	}

	start := time.Now()
	sum, last := p.derive(series)
	p.metrics.RecordLatency("derive", time.Since(start).Seconds())
	log.Debug("derive", applogger.String("signal", string(sum.Signal)), applogger.Int("bars", sum.Bars))

	if err := p.summaries.WriteSummary(ctx, sum); err != nil {
		return out, nil, fmt.Errorf("persist summary: %w", err)
	}

	p.sideOutputs(ctx, runID, added, sum, last, log)

	p.metrics.RecordSymbol(sym, "ok")
	p.metrics.RecordLastPrice(sym, sum.LastClose)
	log.Info("symbol done",
		applogger.Int("added", out.Added),
		applogger.Int("kept", out.Kept),
		applogger.String("signal", string(sum.Signal)),
	)
	return out, &sum, nil
}

// ingest returns the series as stored after this attempt and how many bars it gained.
func (p *Pipeline) ingest(ctx context.Context, sym string, log *applogger.Logger) (models.Series, int, error) {
	start := time.Now()
	stored, version, err := p.series.Read(ctx, sym)
	p.metrics.RecordLatency("read", time.Since(start).Seconds())
	if err != nil {
		return models.Series{}, 0, fmt.Errorf("read series: %w", err)
	}
	log.Debug("read", applogger.Int("bars", stored.Len()))

	from, to, ok := FetchWindow(stored, p.now(), p.cfg.SeedHorizon, p.cfg.Resolution.Unit())
	if !ok {
		log.Debug("window empty, series up to date")
		return stored, 0, nil
	}
	log.Debug("window", applogger.Time("from", from), applogger.Time("to", to))

	start = time.Now()
	bars, err := p.market.Fetch(ctx, sym, string(p.cfg.Resolution), from, to)
	p.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	if errors.Is(err, drepo.ErrNoData) {
		log.Info("provider returned no data for window")
		return stored, 0, nil
	}
	if err != nil {
		return models.Series{}, 0, fmt.Errorf("fetch: %w", err)
	}
	if len(bars) == 0 {
		log.Info("fetch returned no bars")
		return stored, 0, nil
	}

	merged, added := merge.Merge(stored, bars)
	if merge.Equal(merged, stored) {
		log.Debug("merge produced no change")
		return stored, 0, nil
	}

	start = time.Now()
	if _, err := p.series.Write(ctx, merged, version); err != nil {
		return models.Series{}, 0, fmt.Errorf("persist series: %w", err)
	}
	p.metrics.RecordLatency("write", time.Since(start).Seconds())
	log.Debug("persist", applogger.Int("added", added), applogger.Int("bars", merged.Len()))
	return merged, added, nil
}

func (p *Pipeline) derive(series models.Series) (models.Summary, models.SignalRecord) {
	recs := p.engine.Compute(series)
	last := recs[len(recs)-1]
	return models.Summary{
		Symbol:    series.Symbol,
		LastClose: last.Close,
		NextClose: optionPtr(forecast.NextClose(series.Closes(), p.cfg.ForecastLookback)),
		Signal:    last.State,
		Direction: maco.Direction(last),
		SMAShort:  optionPtr(last.SMAShort),
		SMALong:   optionPtr(last.SMALong),
		LastTime:  last.Time.UTC(),
		AsOf:      p.now().UTC(),
		Bars:      series.Len(),
	}, last
}

// sideOutputs feeds the warehouse and the event stream. Failures are logged and
// counted but never fail the symbol.
func (p *Pipeline) sideOutputs(ctx context.Context, runID string, added int, sum models.Summary, last models.SignalRecord, log *applogger.Logger) {
	if p.warehouse != nil {
		row := models.WarehouseRow{
			Symbol:     sum.Symbol,
			TS:         last.Time.UTC(),
			Close:      last.Close,
			SMAS:       sum.SMAShort,
			SMAL:       sum.SMALong,
			BuySignal:  last.State == models.SignalBuy,
			SellSignal: last.State == models.SignalSell,
			Direction:  string(last.State),
			IngestedAt: sum.AsOf,
		}
		if err := p.warehouse.Append(ctx, []models.WarehouseRow{row}); err != nil {
			p.metrics.RecordError("warehouse")
			log.Warn("warehouse append failed", applogger.Error(err))
		}
	}
	if p.publisher != nil {
		ev := models.SignalEvent{RunID: runID, Added: added, Summary: sum}
		if err := p.publisher.Publish(ctx, ev); err != nil {
			p.metrics.RecordError("publish")
			log.Warn("signal publish failed", applogger.Error(err))
		}
	}
}

// writeAggregate rewrites the aggregate object: fresh summaries plus the previous
// entry of every configured symbol that has no fresh one.
func (p *Pipeline) writeAggregate(ctx context.Context, fresh map[string]models.Summary) error {
	all := make(map[string]models.Summary, len(p.cfg.Symbols))
	prior, err := p.summaries.ReadAll(ctx)
	if err != nil {
		p.l.Warn("previous aggregate unreadable, rebuilding from this run", applogger.Error(err))
		prior = nil
	}
	for _, sym := range p.cfg.Symbols {
		if s, ok := fresh[sym]; ok {
			all[sym] = s
		} else if s, ok := prior[sym]; ok {
			all[sym] = s
		}
	}
	return p.summaries.WriteAll(ctx, all)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, drepo.ErrAuth):
		return "auth"
	case errors.Is(err, drepo.ErrTransient):
		return "transient"
	case errors.Is(err, drepo.ErrMalformed):
		return "malformed"
	case errors.Is(err, drepo.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

func optionPtr(o optional.Option[float64]) *float64 {
	v, err := o.Take()
	if err != nil {
		return nil
	}
	return &v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordSymbol(string, string) {}
func (nopMetrics) RecordBarsAdded(string, int) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordRun(string, float64) {}
