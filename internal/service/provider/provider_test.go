package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"testing"
	"time"

	domrepo "MacoPull/internal/domain/repository"
	pkghttp "MacoPull/pkg/http"
)

func fastCaller(retries int) *Caller {
	return NewCaller(Policy{MaxRetries: retries, BackoffInitial: time.Millisecond, BackoffMax: 2 * time.Millisecond}, nil)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := fastCaller(3).Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: 503", domrepo.ErrTransient)
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := fastCaller(3).Do(context.Background(), "test", func(context.Context) error {
		calls++
		return fmt.Errorf("%w: 401", domrepo.ErrAuth)
	})
	if !errors.Is(err, domrepo.ErrAuth) || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestDoGivesUpAfterRetries(t *testing.T) {
	calls := 0
	err := fastCaller(2).Do(context.Background(), "test", func(context.Context) error {
		calls++
		return domrepo.ErrTransient
	})
	if !errors.Is(err, domrepo.ErrTransient) || calls != 3 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		err  error
		want error
	}{
		{&pkghttp.StatusError{StatusCode: 401}, domrepo.ErrAuth},
		{&pkghttp.StatusError{StatusCode: 403}, domrepo.ErrAuth},
		{&pkghttp.StatusError{StatusCode: 429}, domrepo.ErrTransient},
		{&pkghttp.StatusError{StatusCode: 502}, domrepo.ErrTransient},
		{&pkghttp.StatusError{StatusCode: 422}, domrepo.ErrMalformed},
		{fmt.Errorf("request failed: %w", &url.Error{Op: "Get", URL: "x", Err: errors.New("refused")}), domrepo.ErrTransient},
		{errors.New("decode json: bad"), domrepo.ErrMalformed},
	}
	for _, c := range cases {
		if got := Classify(ctx, c.err); !errors.Is(got, c.want) {
			t.Fatalf("%v: got %v want %v", c.err, got, c.want)
		}
	}
}

func TestClassifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := Classify(ctx, errors.New("x")); !errors.Is(got, context.Canceled) {
		t.Fatalf("got %v", got)
	}
}

func TestValidBar(t *testing.T) {
	if !ValidBar(1, 2, 0) || ValidBar(1, -1) || ValidBar(math.NaN()) || ValidBar(math.Inf(1)) {
		t.Fatalf("unexpected validity")
	}
}
