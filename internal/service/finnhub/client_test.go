package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domrepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/service/provider"
)

func testClient(url string) *Client {
	return New(Config{
		APIKey:  "secret",
		BaseURL: url,
		Timeout: 2 * time.Second,
		Policy:  provider.Policy{MaxRetries: 3, BackoffInitial: time.Millisecond, BackoffMax: 2 * time.Millisecond},
	}, nil)
}

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
)

func TestResolve(t *testing.T) {
	chain := DefaultResolvers(map[string]string{"gold": "OANDA:XAU_USD"})
	cases := []struct {
		in, wire, endpoint string
	}{
		{"AAPL", "AAPL", endpointStock},
		{"BRK-B", "BRK-B", endpointStock},
		{"BTC-USD", "BINANCE:BTCUSDT", endpointCrypto},
		{"ETH-USDT", "BINANCE:ETHUSDT", endpointCrypto},
		{"BINANCE:SOLUSDT", "BINANCE:SOLUSDT", endpointCrypto},
		{"OANDA:EUR_USD", "OANDA:EUR_USD", endpointForex},
		{"GOLD", "OANDA:XAU_USD", endpointForex},
	}
	for _, c := range cases {
		wire, ep := resolve(chain, c.in)
		if wire != c.wire || ep != c.endpoint {
			t.Fatalf("%s: got %s %s want %s %s", c.in, wire, ep, c.wire, c.endpoint)
		}
	}
}

func TestFetchParsesCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/crypto/candle" || q.Get("symbol") != "BINANCE:BTCUSDT" || q.Get("resolution") != "D" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get(tokenHeader) != "secret" || q.Get("token") != "secret" {
			t.Errorf("missing credential")
		}
		w.Write([]byte(`{"s":"ok",
			"t":[1704153600,1704240000,1704326400],
			"o":[1,2,3],"h":[1.5,2.5,3.5],"l":[0.5,1.5,2.5],"c":[1.2,null,3.2],"v":[10,20,30]}`))
	}))
	defer srv.Close()

	bars, err := testClient(srv.URL).Fetch(context.Background(), "BTC-USD", "D", from, to)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars=%d want 2 (null close dropped)", len(bars))
	}
	if !bars[0].Time.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) || bars[1].Close != 3.2 {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestFetchNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"no_data"}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Fetch(context.Background(), "AAPL", "D", from, to); !errors.Is(err, domrepo.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFetchAuthNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), "AAPL", "D", from, to)
	if !errors.Is(err, domrepo.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("auth failure retried %d times", calls)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"s":"ok","t":[1704153600],"o":[1],"h":[1],"l":[1],"c":[1],"v":[1]}`))
	}))
	defer srv.Close()

	bars, err := testClient(srv.URL).Fetch(context.Background(), "AAPL", "D", from, to)
	if err != nil || len(bars) != 1 {
		t.Fatalf("bars=%d err=%v", len(bars), err)
	}
}

func TestFetchTransientExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Fetch(context.Background(), "AAPL", "D", from, to); !errors.Is(err, domrepo.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestFetchMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"ok","t":[1704153600,1704240000],"o":[1],"h":[1],"l":[1],"c":[1]}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Fetch(context.Background(), "AAPL", "D", from, to); !errors.Is(err, domrepo.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("token") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"c":1}`))
	}))
	defer srv.Close()

	if err := testClient(srv.URL).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	bad := testClient(srv.URL)
	bad.cfg.APIKey = "wrong"
	if err := bad.Ping(context.Background()); !errors.Is(err, domrepo.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
