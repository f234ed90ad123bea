// Package retry runs a call with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// Policy bounds how a failing call is retried.
type Policy struct {
	// MaxRetries is the number of extra attempts after the first; 0 disables retries.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// OnRetry, when set, runs before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Jitter maps a nominal delay to the actual sleep. Defaults to full jitter in [d/2, d].
	Jitter func(d time.Duration) time.Duration
}

// Retryable reports whether err is transient: a connection or timeout error
// that is neither a breaker rejection nor a caller cancellation.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, domain.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	switch domain.KindOf(err) {
	case domain.KindConnection, domain.KindTimeout:
		return true
	default:
		return false
	}
}

// Backoff returns the nominal delay before retry number attempt (0-based):
// min(BaseDelay·2^attempt, MaxDelay).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for range attempt {
		if d >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. A retry whose backoff would outlive ctx's
// deadline is not attempted; the last error is returned instead.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	jitter := p.Jitter
	if jitter == nil {
		jitter = halfJitter
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !Retryable(err) {
			return err
		}

		delay := jitter(p.Backoff(attempt))
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

func halfJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(d-half+1)
}
