// Package finnhub is a REST client for Finnhub daily candles.
package finnhub

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"MacoPull/internal/domain/models"
	domrepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/service/provider"
	pkghttp "MacoPull/pkg/http"
	applogger "MacoPull/pkg/logger"
	"MacoPull/pkg/util"
)

const (
	DefaultBaseURL = "https://finnhub.io/api/v1"
	tokenHeader    = "X-Finnhub-Token"
	statusOK       = "ok"
	statusNoData   = "no_data"
)

// Config holds client settings.
type Config struct {
	APIKey      string
	BaseURL     string
	ProbeSymbol string
	Timeout     time.Duration
	SymbolMap   map[string]string
	Policy      provider.Policy
}

// Client implements repository.MarketData against the Finnhub REST API.
type Client struct {
	cfg       Config
	http      *pkghttp.Client
	caller    *provider.Caller
	resolvers []Resolver
	l         *applogger.Logger
}

var _ domrepo.MarketData = (*Client)(nil)

func New(cfg Config, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ProbeSymbol == "" {
		cfg.ProbeSymbol = "AAPL"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:       cfg,
		http:      pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout), pkghttp.WithUserAgent("macopull")),
		caller:    provider.NewCaller(cfg.Policy, l),
		resolvers: DefaultResolvers(cfg.SymbolMap),
		l:         l,
	}
}

func (c *Client) Name() string { return "finnhub" }

type candleResponse struct {
	S string     `json:"s"`
	T []int64    `json:"t"`
	O []*float64 `json:"o"`
	H []*float64 `json:"h"`
	L []*float64 `json:"l"`
	C []*float64 `json:"c"`
	V []*float64 `json:"v"`
}

// Fetch requests daily candles in [from, to).
func (c *Client) Fetch(ctx context.Context, symbol, resolution string, from, to time.Time) ([]models.Bar, error) {
	wire, endpoint := resolve(c.resolvers, symbol)
	params := map[string][]string{
		"symbol":     {wire},
		"resolution": {resolution},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
		"token":      {c.cfg.APIKey},
	}

	start := time.Now()
	var resp candleResponse
	err := c.caller.Do(ctx, "finnhub"+endpoint, func(ctx context.Context) error {
		resp = candleResponse{}
		err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method:      pkghttp.MethodGet,
			URL:         c.cfg.BaseURL + endpoint,
			Headers:     map[string]string{tokenHeader: c.cfg.APIKey},
			QueryParams: params,
		}, &resp)
		return provider.Classify(ctx, err)
	})
	if err != nil {
		return nil, fmt.Errorf("finnhub fetch %s (%s): %w", symbol, wire, err)
	}

	bars, dropped, err := normalize(resp, from, to)
	if err != nil {
		return nil, fmt.Errorf("finnhub fetch %s (%s): %w", symbol, wire, err)
	}
	c.l.Debug("finnhub candles",
		applogger.String("symbol", symbol),
		applogger.String("wire", wire),
		applogger.String("endpoint", endpoint),
		applogger.Int("bars", len(bars)),
		applogger.Int("dropped", dropped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return bars, nil
}

// Ping issues one quote request for the probe symbol.
func (c *Client) Ping(ctx context.Context) error {
	err := c.caller.Do(ctx, "finnhub/quote", func(ctx context.Context) error {
		err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method:      pkghttp.MethodGet,
			URL:         c.cfg.BaseURL + "/quote",
			Headers:     map[string]string{tokenHeader: c.cfg.APIKey},
			QueryParams: map[string][]string{"symbol": {c.cfg.ProbeSymbol}, "token": {c.cfg.APIKey}},
		}, nil)
		return provider.Classify(ctx, err)
	})
	if err != nil {
		return fmt.Errorf("finnhub ping: %w", err)
	}
	return nil
}

// normalize validates the columnar payload and turns it into bars inside [from, to).
// Rows with a missing close or invalid prices are dropped and counted.
func normalize(resp candleResponse, from, to time.Time) ([]models.Bar, int, error) {
	switch resp.S {
	case statusNoData:
		return nil, 0, domrepo.ErrNoData
	case statusOK:
	default:
		return nil, 0, fmt.Errorf("%w: status %q", domrepo.ErrMalformed, resp.S)
	}
	n := len(resp.T)
	if n == 0 {
		return nil, 0, nil
	}
	if len(resp.C) != n || len(resp.O) != n || len(resp.H) != n || len(resp.L) != n {
		return nil, 0, fmt.Errorf("%w: column lengths differ (t=%d c=%d)", domrepo.ErrMalformed, n, len(resp.C))
	}
	if len(resp.V) != 0 && len(resp.V) != n {
		return nil, 0, fmt.Errorf("%w: volume length %d, want %d", domrepo.ErrMalformed, len(resp.V), n)
	}

	fromDay := util.TruncateDay(from)
	bars := make([]models.Bar, 0, n)
	dropped := 0
	for i, ts := range resp.T {
		if resp.C[i] == nil || resp.O[i] == nil || resp.H[i] == nil || resp.L[i] == nil {
			dropped++
			continue
		}
		b := models.Bar{
			Time:  util.TruncateDay(time.Unix(ts, 0)),
			Open:  *resp.O[i],
			High:  *resp.H[i],
			Low:   *resp.L[i],
			Close: *resp.C[i],
		}
		if len(resp.V) == n && resp.V[i] != nil {
			b.Volume = *resp.V[i]
		}
		if !provider.ValidBar(b.Open, b.High, b.Low, b.Close, b.Volume) {
			dropped++
			continue
		}
		if b.Time.Before(fromDay) || !b.Time.Before(to) {
			continue
		}
		bars = append(bars, b)
	}
	return bars, dropped, nil
}
