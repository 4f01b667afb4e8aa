package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendAndParseJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "AAPL" || r.Header.Get("User-Agent") != "macopull-test" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"s":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("macopull-test"))
	var out struct {
		S string `json:"s"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"symbol": {"AAPL"}},
	}, &out)
	if err != nil || out.S != "ok" {
		t.Fatalf("got %+v err=%v", out, err)
	}
}

func TestSendAndParseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests || string(se.Body) != "slow down" {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}
