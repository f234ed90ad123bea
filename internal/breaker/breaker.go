// Package breaker implements a consecutive-failure circuit breaker for a single backend target.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// State is the breaker position.
type State int

const (
	// Closed lets every call through and counts consecutive failures.
	Closed State = iota
	// Open rejects every call until the cooldown elapses.
	Open
	// HalfOpen lets a single probe call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Outcome is what a gated call reports back.
type Outcome int

const (
	// Success resets the failure counter and closes a half-open breaker.
	Success Outcome = iota
	// Failure counts toward the threshold; a failed probe reopens the breaker.
	Failure
	// Neutral leaves the counter alone and frees the probe slot.
	Neutral
)

// OutcomeOf classifies a call result. Only connection and timeout errors are
// failures; caller cancellation, breaker rejections, bad payloads and bad
// input are neutral.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrCircuitOpen):
		return Neutral
	}
	switch domain.KindOf(err) {
	case domain.KindConnection, domain.KindTimeout:
		return Failure
	default:
		return Neutral
	}
}

// Snapshot is a consistent view of the breaker.
type Snapshot struct {
	State     State
	Failures  int
	ChangedAt time.Time
}

// Breaker guards one backend target. All state lives behind mu.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	probing   bool
	changedAt time.Time

	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	onChange  func(from, to State)
	logger    *zap.Logger
}

// New creates a closed breaker. threshold <= 0 disables it.
func New(name string, threshold int, cooldown time.Duration, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		changedAt: time.Now(),
		logger:    logger,
	}
}

// WithClock replaces the time source (tests).
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	b.changedAt = now()
	return b
}

// WithStateHook registers fn to run on every transition, under the breaker lock.
func (b *Breaker) WithStateHook(fn func(from, to State)) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
	return b
}

// Enabled reports whether the breaker gates calls at all.
func (b *Breaker) Enabled() bool { return b.threshold > 0 }

// Acquire asks to make a call. On success the returned done func must be
// called exactly once with the call's outcome. While open, or while a
// half-open probe is in flight, Acquire fails with a Connection error
// wrapping domain.ErrCircuitOpen.
func (b *Breaker) Acquire() (done func(Outcome), err error) {
	if !b.Enabled() {
		return func(Outcome) {}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.changedAt) < b.cooldown {
			return nil, domain.CircuitOpen(b.name)
		}
		b.transition(HalfOpen)
		b.probing = true
		return b.doneFunc(true), nil
	case HalfOpen:
		if b.probing {
			return nil, domain.CircuitOpen(b.name)
		}
		b.probing = true
		return b.doneFunc(true), nil
	default:
		return b.doneFunc(false), nil
	}
}

func (b *Breaker) doneFunc(probe bool) func(Outcome) {
	var once sync.Once
	return func(o Outcome) {
		once.Do(func() { b.record(probe, o) })
	}
}

func (b *Breaker) record(probe bool, o Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	} else if b.state != Closed {
		// Started while closed, finished after the breaker tripped: stale.
		return
	}

	switch o {
	case Success:
		b.failures = 0
		if b.state == HalfOpen {
			b.transition(Closed)
		}
	case Failure:
		b.failures++
		switch {
		case b.state == HalfOpen:
			b.transition(Open)
		case b.failures >= b.threshold:
			b.transition(Open)
		}
	case Neutral:
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.changedAt = b.now()

	fields := []zap.Field{
		zap.String("breaker", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("failures", b.failures),
	}
	if to == Open {
		b.logger.Warn("Circuit breaker opened", append(fields, zap.Duration("cooldown", b.cooldown))...)
	} else {
		b.logger.Info("Circuit breaker state changed", fields...)
	}
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

// State returns the current position. An open breaker whose cooldown has
// elapsed still reports Open until the next Acquire moves it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive-failure counter.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Snapshot returns state, counter and last transition time together.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{State: b.state, Failures: b.failures, ChangedAt: b.changedAt}
}
