// Package breaker implements a per-dependency circuit breaker. Every
// external quote/swap/status call in the engine is routed through one of
// these so a failing dependency is rejected fast instead of retried.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker's position in its finite-state machine.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrBreakerOpen is returned without invoking the wrapped operation while
// the breaker is open and its timeout has not elapsed.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Config controls breaker transitions.
type Config struct {
	// FailureThreshold is the number of in-window failures that opens the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes that closes it.
	SuccessThreshold int
	// OpenTimeout is how long the breaker rejects calls before probing again.
	OpenTimeout time.Duration
	// MonitoringWindow bounds how long a recorded failure counts toward the threshold.
	MonitoringWindow time.Duration
}

// DefaultConfig returns the breaker configuration used for venue calls.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		MonitoringWindow: 60 * time.Second,
	}
}

// Breaker guards one external dependency. One instance per dependency,
// long-lived; counters are mutated only by call outcomes or ForceState.
type Breaker struct {
	name string
	cfg  Config

	mu           sync.Mutex
	state        State
	failures     []time.Time // timestamps of recent failures, pruned to the window
	successCount int         // consecutive successes while half-open
	openedAt     time.Time

	now func() time.Time // injectable clock for tests
}

// New creates a closed breaker with the given name.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Status is a point-in-time snapshot of the breaker.
type Status struct {
	Name         string    `json:"name"`
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs op under the breaker. While open and before the timeout it
// rejects with ErrBreakerOpen without invoking op. Any non-nil return from
// op counts as a failure.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := op(ctx)
	b.afterCall(err == nil)
	if err != nil {
		return err
	}
	return nil
}

// ExecuteValue runs op under breaker b and returns its value.
func ExecuteValue[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// CanExecute reports whether a call would currently be allowed, without
// recording an outcome. An open breaker whose timeout has elapsed reports
// true: the next Execute will probe the dependency.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return true
	}
	return b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout
}

// ForceState overrides the breaker state. Operator use only.
func (b *Breaker) ForceState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transition(s)
}

// Status returns a snapshot of the breaker's current state and counters.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneFailures()
	return Status{
		Name:         b.name,
		State:        b.state,
		FailureCount: len(b.failures),
		SuccessCount: b.successCount,
		OpenedAt:     b.openedAt,
	}
}

// Reset closes the breaker and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transition(StateClosed)
}

// beforeCall decides whether the call may proceed, moving OPEN -> HALF_OPEN
// once the timeout has elapsed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
		return fmt.Errorf("%s: %w", b.name, ErrBreakerOpen)
	}
	b.transition(StateHalfOpen)
	return nil
}

// afterCall records the outcome of a permitted call in one critical section.
func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state == StateHalfOpen {
			b.successCount++
			if b.successCount >= b.cfg.SuccessThreshold {
				b.transition(StateClosed)
			}
		}
		return
	}

	// Any half-open failure reopens immediately.
	if b.state == StateHalfOpen {
		b.transition(StateOpen)
		return
	}

	b.failures = append(b.failures, b.now())
	b.pruneFailures()
	if b.state == StateClosed && len(b.failures) >= b.cfg.FailureThreshold {
		b.transition(StateOpen)
	}
}

// transition moves to the target state and resets the counters that state
// owns. Caller holds b.mu.
func (b *Breaker) transition(s State) {
	b.state = s
	switch s {
	case StateOpen:
		b.openedAt = b.now()
		b.successCount = 0
	case StateHalfOpen:
		b.successCount = 0
	case StateClosed:
		b.failures = b.failures[:0]
		b.successCount = 0
	}
}

// pruneFailures drops failures older than the monitoring window. Caller
// holds b.mu.
func (b *Breaker) pruneFailures() {
	if b.cfg.MonitoringWindow <= 0 {
		return
	}
	cutoff := b.now().Add(-b.cfg.MonitoringWindow)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}
