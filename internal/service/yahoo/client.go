// Package yahoo fetches daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
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

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Config holds client settings.
type Config struct {
	BaseURL     string
	ProbeSymbol string
	Timeout     time.Duration
	SymbolMap   map[string]string
	Policy      provider.Policy
}

// Client implements repository.MarketData. Yahoo needs no credential; crypto
// pairs such as BTC-USD are already in its native form.
type Client struct {
	cfg    Config
	http   *pkghttp.Client
	caller *provider.Caller
	l      *applogger.Logger
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
		cfg:    cfg,
		http:   pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout), pkghttp.WithUserAgent("Mozilla/5.0")),
		caller: provider.NewCaller(cfg.Policy, l),
		l:      l,
	}
}

func (c *Client) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) ticker(symbol string) string {
	if mapped, ok := c.cfg.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

func (c *Client) chart(ctx context.Context, symbol string, params map[string][]string) (chartResponse, error) {
	var resp chartResponse
	err := c.caller.Do(ctx, "yahoo/chart", func(ctx context.Context) error {
		resp = chartResponse{}
		err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method:      pkghttp.MethodGet,
			URL:         c.cfg.BaseURL + "/v8/finance/chart/" + url.PathEscape(c.ticker(symbol)),
			QueryParams: params,
		}, &resp)
		// unknown tickers answer 404 with a chart.error body
		var se *pkghttp.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", domrepo.ErrNoData, se.Body)
		}
		return provider.Classify(ctx, err)
	})
	return resp, err
}

// Fetch requests daily bars in [from, to).
func (c *Client) Fetch(ctx context.Context, symbol, resolution string, from, to time.Time) ([]models.Bar, error) {
	if resolution != string(domrepo.ResolutionDaily) {
		return nil, fmt.Errorf("yahoo: resolution %q: %w", resolution, domrepo.ErrMalformed)
	}
	resp, err := c.chart(ctx, symbol, map[string][]string{
		"interval": {"1d"},
		"period1":  {strconv.FormatInt(from.Unix(), 10)},
		"period2":  {strconv.FormatInt(to.Unix(), 10)},
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	bars, dropped, err := normalize(resp, from, to)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	c.l.Debug("yahoo chart",
		applogger.String("symbol", symbol),
		applogger.Int("bars", len(bars)),
		applogger.Int("dropped", dropped),
	)
	return bars, nil
}

// Ping checks reachability with a one-day chart of the probe symbol.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.chart(ctx, c.cfg.ProbeSymbol, map[string][]string{"interval": {"1d"}, "range": {"1d"}})
	// an unknown probe ticker still proves the API is reachable
	if err != nil && !errors.Is(err, domrepo.ErrNoData) {
		return fmt.Errorf("yahoo ping: %w", err)
	}
	return nil
}

func normalize(resp chartResponse, from, to time.Time) ([]models.Bar, int, error) {
	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, 0, fmt.Errorf("%w: %s", domrepo.ErrNoData, e.Description)
		}
		return nil, 0, fmt.Errorf("%w: %s: %s", domrepo.ErrMalformed, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Timestamp) == 0 {
		return nil, 0, domrepo.ErrNoData
	}
	res := resp.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, 0, fmt.Errorf("%w: missing quote block", domrepo.ErrMalformed)
	}
	q := res.Indicators.Quote[0]
	n := len(res.Timestamp)
	if len(q.Close) != n || len(q.Open) != n || len(q.High) != n || len(q.Low) != n {
		return nil, 0, fmt.Errorf("%w: column lengths differ", domrepo.ErrMalformed)
	}

	fromDay := util.TruncateDay(from)
	bars := make([]models.Bar, 0, n)
	dropped := 0
	for i, ts := range res.Timestamp {
		// holidays and partial sessions come back as nulls
		if q.Close[i] == nil || q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil {
			dropped++
			continue
		}
		b := models.Bar{
			Time:  util.TruncateDay(time.Unix(ts, 0)),
			Open:  *q.Open[i],
			High:  *q.High[i],
			Low:   *q.Low[i],
			Close: *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = *q.Volume[i]
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
