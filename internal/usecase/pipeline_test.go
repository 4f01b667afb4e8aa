package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"MacoPull/internal/domain/models"
	drepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/repository"
	"MacoPull/pkg/blob/local"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// dailyBars returns n consecutive bars ending on the day before testNow.
func dailyBars(n int, base float64) []models.Bar {
	out := make([]models.Bar, n)
	first := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(n - 1))
	for i := range out {
		c := base + float64(i)
		out[i] = models.Bar{Time: first.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return out
}

type fakeMarket struct {
	mu      sync.Mutex
	bars    map[string][]models.Bar
	errs    map[string]error
	pingErr error
	fetched []string
}

func (f *fakeMarket) Name() string { return "fake" }

func (f *fakeMarket) Ping(context.Context) error { return f.pingErr }

func (f *fakeMarket) Fetch(_ context.Context, symbol, _ string, from, to time.Time) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, symbol)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	var out []models.Bar
	for _, b := range f.bars[symbol] {
		if !b.Time.Before(from.Truncate(24*time.Hour)) && b.Time.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	runs   []string
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (m *fakeMetrics) RecordSymbol(string, string) {}
func (m *fakeMetrics) RecordBarsAdded(string, int) {}
func (m *fakeMetrics) RecordLastPrice(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64) {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordRun(status string, _ float64) {
	m.mu.Lock()
	m.runs = append(m.runs, status)
	m.mu.Unlock()
}

type fakeWarehouse struct {
	rows []models.WarehouseRow
	err  error
}

func (w *fakeWarehouse) Append(_ context.Context, rows []models.WarehouseRow) error {
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, rows...)
	return nil
}

func (w *fakeWarehouse) Recent(context.Context, string, int) ([]models.WarehouseRow, error) {
	return w.rows, nil
}

func (w *fakeWarehouse) Close() error { return nil }

type fakePublisher struct {
	events []models.SignalEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev models.SignalEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeLock struct {
	held     bool
	unlocked bool
}

func (l *fakeLock) TryLock(context.Context, string, time.Duration) (bool, error) { return !l.held, nil }

func (l *fakeLock) Unlock(context.Context, string) error {
	l.unlocked = true
	return nil
}

// conflictingStore fails the first n writes with ErrConflict.
type conflictingStore struct {
	drepo.SeriesStore
	remaining int
	writes    int
}

func (s *conflictingStore) Write(ctx context.Context, series models.Series, v drepo.Version) (drepo.Version, error) {
	s.writes++
	if s.remaining > 0 {
		s.remaining--
		return "", fmt.Errorf("write series: %w", drepo.ErrConflict)
	}
	return s.SeriesStore.Write(ctx, series, v)
}

type harness struct {
	root      string
	series    *repository.BlobSeriesStore
	summaries *repository.BlobSummaryStore
	market    *fakeMarket
	metrics   *fakeMetrics
	sleeps    []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	store, err := local.New(root)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	return &harness{
		root:      root,
		series:    repository.NewBlobSeriesStore(store, "data/raw", nil),
		summaries: repository.NewBlobSummaryStore(store, "data/raw"),
		market:    &fakeMarket{bars: map[string][]models.Bar{}, errs: map[string]error{}},
		metrics:   newFakeMetrics(),
	}
}

func (h *harness) pipeline(symbols []string, series drepo.SeriesStore, opts ...PipelineOption) *Pipeline {
	if series == nil {
		series = h.series
	}
	cfg := PipelineConfig{
		Symbols:          symbols,
		Resolution:       drepo.ResolutionDaily,
		ShortWindow:      3,
		LongWindow:       5,
		ForecastLookback: 20,
		SeedHorizon:      DefaultSeedHorizon,
		FailureBackoff:   2 * time.Second,
		ConflictRetries:  1,
	}
	base := []PipelineOption{
		WithClock(func() time.Time { return testNow }),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
	}
	return NewPipeline(cfg, h.market, series, h.summaries, h.metrics, nil, append(base, opts...)...)
}

func TestRunSeedsEmptySeries(t *testing.T) {
	h := newHarness(t)
	h.market.bars["AAPL"] = dailyBars(30, 100)
	wh := &fakeWarehouse{}
	pub := &fakePublisher{}

	res, err := h.pipeline([]string{"AAPL"}, nil, WithWarehouse(wh), WithPublisher(pub)).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed() || len(res.Outcomes) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if o := res.Outcomes[0]; o.Added != 30 || o.Kept != 30 {
		t.Fatalf("unexpected outcome %+v", o)
	}

	sum, err := h.summaries.ReadSummary(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if sum.LastClose != 129 || sum.Bars != 30 || sum.NextClose == nil || *sum.NextClose < 129.99 || *sum.NextClose > 130.01 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Direction != models.DirectionLong || !sum.AsOf.Equal(testNow) {
		t.Fatalf("unexpected direction/asof %+v", sum)
	}
	all, _ := h.summaries.ReadAll(context.Background())
	if _, ok := all["AAPL"]; !ok {
		t.Fatalf("aggregate missing AAPL")
	}
	if len(wh.rows) != 1 || len(pub.events) != 1 || pub.events[0].RunID != res.RunID {
		t.Fatalf("side outputs: rows=%d events=%d", len(wh.rows), len(pub.events))
	}
	if row := wh.rows[0]; row.Direction != string(sum.Signal) || row.Direction == sum.Direction {
		t.Fatalf("warehouse direction should carry the crossover state %q, got %q", sum.Signal, row.Direction)
	}
}

func TestRunEmptyFetchLeavesObjectUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seed := models.Series{Symbol: "AAPL", Bars: dailyBars(10, 50)}
	if _, err := h.series.Write(ctx, seed, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	path := filepath.Join(h.root, "data", "raw", "AAPL.csv")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	statBefore, _ := os.Stat(path)

	// provider has nothing newer than the stored series
	h.market.bars["AAPL"] = seed.Bars
	res, err := h.pipeline([]string{"AAPL"}, nil).Run(ctx)
	if err != nil || res.Failed() {
		t.Fatalf("run: %+v %v", res, err)
	}

	after, _ := os.ReadFile(path)
	statAfter, _ := os.Stat(path)
	if string(before) != string(after) || !statBefore.ModTime().Equal(statAfter.ModTime()) {
		t.Fatalf("series object was rewritten")
	}
	if o := res.Outcomes[0]; o.Added != 0 || o.Kept != 10 {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, err := h.summaries.ReadSummary(ctx, "AAPL"); err != nil {
		t.Fatalf("summary should still be derived: %v", err)
	}
}

func TestRunNoDataOnEmptySeries(t *testing.T) {
	h := newHarness(t)
	h.market.errs["NEW"] = drepo.ErrNoData

	res, err := h.pipeline([]string{"NEW"}, nil).Run(context.Background())
	if err != nil || res.Failed() {
		t.Fatalf("run: %+v %v", res, err)
	}
	if o := res.Outcomes[0]; o.Kept != 0 || o.Failed() {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if _, err := h.summaries.ReadSummary(context.Background(), "NEW"); !errors.Is(err, drepo.ErrNotFound) {
		t.Fatalf("no summary expected for empty series, got %v", err)
	}
}

func TestRunSelfCheckAuthAborts(t *testing.T) {
	h := newHarness(t)
	h.market.pingErr = fmt.Errorf("ping: %w", drepo.ErrAuth)

	res, err := h.pipeline([]string{"AAPL", "TSLA"}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Aborted || len(res.Outcomes) != 0 || len(h.market.fetched) != 0 {
		t.Fatalf("expected abort before any symbol, got %+v fetched=%v", res, h.market.fetched)
	}
	if h.metrics.errors["auth"] != 1 {
		t.Fatalf("auth error not counted")
	}
}

func TestRunSelfCheckUnreachableAborts(t *testing.T) {
	h := newHarness(t)
	h.market.pingErr = fmt.Errorf("ping: %w", drepo.ErrTransient)

	res, _ := h.pipeline([]string{"AAPL"}, nil).Run(context.Background())
	if !res.Aborted || len(h.market.fetched) != 0 {
		t.Fatalf("expected abort, got %+v", res)
	}
}

func TestRunFailedSymbolContinues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prior := models.Summary{Symbol: "TSLA", LastClose: 250, Signal: models.SignalHold, Direction: models.DirectionFlat, Bars: 5}
	if err := h.summaries.WriteAll(ctx, map[string]models.Summary{"TSLA": prior}); err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}
	h.market.bars["AAPL"] = dailyBars(10, 100)
	h.market.bars["BTC-USD"] = dailyBars(10, 40000)
	h.market.errs["TSLA"] = fmt.Errorf("finnhub: %w", drepo.ErrTransient)

	res, err := h.pipeline([]string{"AAPL", "TSLA", "BTC-USD"}, nil).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Aborted || len(res.Outcomes) != 3 || !res.Failed() {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Outcomes[1].Failed() || res.Outcomes[0].Failed() || res.Outcomes[2].Failed() {
		t.Fatalf("only TSLA should fail: %+v", res.Outcomes)
	}
	if len(h.sleeps) != 1 || h.sleeps[0] != 2*time.Second {
		t.Fatalf("expected one failure backoff, got %v", h.sleeps)
	}

	all, _ := h.summaries.ReadAll(ctx)
	if len(all) != 3 || all["TSLA"].LastClose != 250 {
		t.Fatalf("aggregate should keep the prior TSLA entry: %+v", all)
	}
	if h.metrics.errors["transient"] != 1 {
		t.Fatalf("transient error not counted: %v", h.metrics.errors)
	}
}

func TestRunAuthMidBatchStops(t *testing.T) {
	h := newHarness(t)
	h.market.bars["AAPL"] = dailyBars(5, 100)
	h.market.errs["TSLA"] = fmt.Errorf("finnhub: %w", drepo.ErrAuth)
	h.market.bars["MSFT"] = dailyBars(5, 300)

	res, _ := h.pipeline([]string{"AAPL", "TSLA", "MSFT"}, nil).Run(context.Background())
	if !res.Aborted || len(res.Outcomes) != 2 {
		t.Fatalf("expected abort after TSLA, got %+v", res)
	}
	for _, s := range h.market.fetched {
		if s == "MSFT" {
			t.Fatalf("MSFT must not be attempted after an auth failure")
		}
	}
}

func TestRunConflictRetried(t *testing.T) {
	h := newHarness(t)
	h.market.bars["AAPL"] = dailyBars(5, 100)
	cs := &conflictingStore{SeriesStore: h.series, remaining: 1}

	res, _ := h.pipeline([]string{"AAPL"}, cs).Run(context.Background())
	if res.Failed() || res.Outcomes[0].Added != 5 {
		t.Fatalf("conflict should be retried once: %+v", res)
	}
	if cs.writes != 2 || len(h.market.fetched) != 2 {
		t.Fatalf("expected full cycle retried: writes=%d fetches=%d", cs.writes, len(h.market.fetched))
	}
}

func TestRunConflictExhausted(t *testing.T) {
	h := newHarness(t)
	h.market.bars["AAPL"] = dailyBars(5, 100)
	cs := &conflictingStore{SeriesStore: h.series, remaining: 5}

	res, _ := h.pipeline([]string{"AAPL"}, cs).Run(context.Background())
	if !res.Outcomes[0].Failed() || h.metrics.errors["conflict"] != 1 {
		t.Fatalf("expected conflict outcome: %+v", res)
	}
}

func TestRunSideOutputFailureDoesNotFailSymbol(t *testing.T) {
	h := newHarness(t)
	h.market.bars["AAPL"] = dailyBars(5, 100)
	wh := &fakeWarehouse{err: errors.New("clickhouse down")}
	pub := &fakePublisher{err: errors.New("broker down")}

	res, _ := h.pipeline([]string{"AAPL"}, nil, WithWarehouse(wh), WithPublisher(pub)).Run(context.Background())
	if res.Failed() {
		t.Fatalf("side output failures must not fail the run: %+v", res)
	}
	if h.metrics.errors["warehouse"] != 1 || h.metrics.errors["publish"] != 1 {
		t.Fatalf("side output errors not counted: %v", h.metrics.errors)
	}
}

func TestRunLockHeld(t *testing.T) {
	h := newHarness(t)
	lock := &fakeLock{held: true}
	p := h.pipeline([]string{"AAPL"}, nil, WithRunLock(lock))
	p.cfg.LockEnabled = true

	if _, err := p.Run(context.Background()); !errors.Is(err, drepo.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if len(h.market.fetched) != 0 {
		t.Fatalf("nothing should run while the lock is held")
	}
}

func TestRunLockReleased(t *testing.T) {
	h := newHarness(t)
	h.market.bars["AAPL"] = dailyBars(3, 100)
	lock := &fakeLock{}
	p := h.pipeline([]string{"AAPL"}, nil, WithRunLock(lock))
	p.cfg.LockEnabled = true

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !lock.unlocked {
		t.Fatalf("lock not released")
	}
}

func TestSecondRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.market.bars["AAPL"] = dailyBars(8, 100)
	p := h.pipeline([]string{"AAPL"}, nil)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, _ := p.Run(context.Background())
	if res.Outcomes[0].Added != 0 || res.Outcomes[0].Kept != 8 {
		t.Fatalf("second run should add nothing: %+v", res.Outcomes[0])
	}
}

func TestSeriesQuery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.series.Write(ctx, models.Series{Symbol: "AAPL", Bars: dailyBars(20, 10)}, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	q := NewSeriesQuery(h.series, 3, 5, 20)

	res, err := q.GetSeries(ctx, GetSeriesParams{Symbol: "AAPL", Limit: 4})
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if res.Total != 20 || res.Count != 4 || !res.Records[0].SMALong.IsSome() {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := q.GetSeries(ctx, GetSeriesParams{Symbol: "NONE"}); !errors.Is(err, drepo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
