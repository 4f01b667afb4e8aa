// Package provider holds the request policy shared by the market data clients:
// client-side rate limiting, bounded exponential retry and status classification.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	domrepo "MacoPull/internal/domain/repository"
	pkghttp "MacoPull/pkg/http"
	applogger "MacoPull/pkg/logger"
)

// Policy configures retries and rate limiting.
type Policy struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	RatePerSec     float64
	Burst          int
}

// Caller executes provider requests under a Policy. Safe for concurrent use.
type Caller struct {
	policy  Policy
	limiter *rate.Limiter
	l       *applogger.Logger
}

func NewCaller(p Policy, l *applogger.Logger) *Caller {
	if l == nil {
		l = applogger.Nop()
	}
	if p.BackoffInitial <= 0 {
		p.BackoffInitial = 1500 * time.Millisecond
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = 30 * time.Second
	}
	limit := rate.Inf
	if p.RatePerSec > 0 {
		limit = rate.Limit(p.RatePerSec)
	}
	burst := p.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Caller{policy: p, limiter: rate.NewLimiter(limit, burst), l: l}
}

// Do runs op until it succeeds, returns a non-transient error, or retries run out.
// Errors returned by op should already be classified via Classify.
func (c *Caller) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.BackoffInitial
	b.MaxInterval = c.policy.BackoffMax
	b.Multiplier = 1.5
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if c.policy.MaxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.policy.MaxRetries))
	}

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := op(ctx)
		if err == nil || errors.Is(err, domrepo.ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.l.Warn("provider request retry",
			applogger.String("op", name),
			applogger.Int("attempt", attempt),
			applogger.Duration("wait_ms", wait),
			applogger.Error(err),
		)
	})
	return err
}

// Classify maps a pkg/http error onto the domain error kinds.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 401 || se.StatusCode == 403:
			return fmt.Errorf("%w: status %d", domrepo.ErrAuth, se.StatusCode)
		case se.StatusCode == 429 || se.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", domrepo.ErrTransient, se.StatusCode)
		default:
			return fmt.Errorf("%w: status %d: %s", domrepo.ErrMalformed, se.StatusCode, se.Body)
		}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%w: %v", domrepo.ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", domrepo.ErrMalformed, err)
}

// ValidBar reports whether all prices are finite and non-negative.
func ValidBar(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}
