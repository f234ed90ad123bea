package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

func noJitter(d time.Duration) time.Duration { return d }

var (
	errConn    = domain.NewError(domain.KindConnection, "search", errors.New("connection reset"))
	errTimeout = domain.NewError(domain.KindTimeout, "search", context.DeadlineExceeded)
)

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
	want := []time.Duration{
		500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second,
	}
	for i, w := range want {
		if got := p.Backoff(i); got != w {
			t.Errorf("Backoff(%d) = %s, want %s", i, got, w)
		}
	}
	if got := p.Backoff(200); got != 8*time.Second {
		t.Errorf("large attempt must cap, got %s", got)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	var delays []time.Duration
	p := Policy{
		MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Jitter: noJitter,
		OnRetry: func(_ int, d time.Duration, _ error) { delays = append(delays, d) },
	}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 4 {
			return errConn
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %s, want %s", i, delays[i], want[i])
		}
	}
}

func TestDo_StopsAfterBudget(t *testing.T) {
	p := Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Jitter: noJitter}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTimeout
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 1+2 calls, got %d", calls)
	}
}

func TestDo_NeverRetriesPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", domain.Validation("sanitize", domain.ErrEmptyQuery)},
		{"response", domain.ResponseError("search", 404, []byte("not found"), errors.New("unexpected status"))},
		{"breaker open", domain.CircuitOpen("okp")},
		{"cancelled", domain.NewError(domain.KindTimeout, "search", context.Canceled)},
		{"untagged", errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
			calls := 0
			err := p.Do(context.Background(), func(context.Context) error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("expected original error, got %v", err)
			}
			if calls != 1 {
				t.Errorf("expected a single call, got %d", calls)
			}
		})
	}
}

func TestDo_RespectsDeadlineBudget(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 8 * time.Second, Jitter: noJitter}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errConn
	})
	if !errors.Is(err, errConn) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("backoff exceeds deadline, expected no retry, got %d calls", calls)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("Do slept past what the budget allows: %s", time.Since(start))
	}
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Jitter: noJitter}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error { return errConn })
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errConn) {
			t.Errorf("expected last error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestHalfJitter_Bounds(t *testing.T) {
	d := 100 * time.Millisecond
	for range 1000 {
		got := halfJitter(d)
		if got < d/2 || got > d {
			t.Fatalf("jitter %s outside [%s, %s]", got, d/2, d)
		}
	}
}
