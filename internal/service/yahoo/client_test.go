package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domrepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/service/provider"
)

func testClient(url string) *Client {
	return New(Config{
		BaseURL: url,
		Policy:  provider.Policy{MaxRetries: 1, BackoffInitial: time.Millisecond, BackoffMax: time.Millisecond},
	}, nil)
}

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
)

func TestFetchSkipsNullBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/BTC-USD" || r.URL.Query().Get("interval") != "1d" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704168000,1704254400],
			"indicators":{"quote":[{"open":[1,null],"high":[2,null],"low":[0.5,null],"close":[1.5,null],"volume":[100,null]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	bars, err := testClient(srv.URL).Fetch(context.Background(), "BTC-USD", "D", from, to)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 1 || !bars[0].Time.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Fetch(context.Background(), "NOPE", "D", from, to); !errors.Is(err, domrepo.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFetchUnknownTicker404(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.Fetch(context.Background(), "NOPE", "D", from, to); !errors.Is(err, domrepo.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("a 404 must not be retried, got %d calls", calls)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("404 on the probe ticker still means reachable, got %v", err)
	}
}

func TestPingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := testClient(srv.URL).Ping(context.Background()); !errors.Is(err, domrepo.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}
