// breaker.go — Circuit Breakers + Degradation (C4, §4.4). A per-service
// consecutive-failure breaker (CLOSED/OPEN/HALF_OPEN) with a half-open
// recovery probe.
package resilience

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is one of the three circuit-breaker states (§4.4).
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Policy configures one breaker's thresholds (§4.4: "default threshold
// 5 (vision 3), half-open after 60s (vision 90s), success threshold 2
// to close").
type Policy struct {
	FailureThreshold int
	HalfOpenAfter    time.Duration
	SuccessThreshold int
}

// DefaultPolicy is the non-vision default (§4.4).
var DefaultPolicy = Policy{FailureThreshold: 5, HalfOpenAfter: 60 * time.Second, SuccessThreshold: 2}

// VisionPolicy is the stricter vision-service default (§4.4).
var VisionPolicy = Policy{FailureThreshold: 3, HalfOpenAfter: 90 * time.Second, SuccessThreshold: 2}

// Breaker is one service's consecutive-failure circuit breaker.
type Breaker struct {
	mu sync.Mutex

	service  string
	policy   Policy
	log      *zap.Logger
	onChange func(service string, from, to State)

	state            State
	consecutiveFails int
	halfOpenSuccess  int
	openedAt         time.Time
}

// New constructs a Breaker for service, CLOSED initially.
func New(service string, policy Policy, log *zap.Logger, onChange func(service string, from, to State)) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{service: service, policy: policy, log: log, onChange: onChange, state: StateClosed}
}

// State returns the current breaker state, transitioning OPEN→HALF_OPEN
// first if the recovery window has elapsed (§4.4 "half-open after Ns").
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpen()
	return b.state
}

// maybeEnterHalfOpen must be called with b.mu held.
func (b *Breaker) maybeEnterHalfOpen() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.policy.HalfOpenAfter {
		b.transition(StateHalfOpen)
		b.halfOpenSuccess = 0
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.log.Info("circuit breaker state change",
		zap.String("service", b.service), zap.String("from", string(from)), zap.String("to", string(to)))
	if b.onChange != nil {
		b.onChange(b.service, from, to)
	}
}

// Allow reports whether a call may proceed. A HALF_OPEN breaker lets
// every call through (concurrent probes are not limited); its first
// failure reopens it and SuccessThreshold successes close it. Callers
// should treat Allow()==false as "fail fast, optionally invoke fallback"
// (§4.4 executeWithResilience).
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpen()
	return b.state != StateOpen
}

// RecordSuccess registers a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpen()
	switch b.state {
	case StateHalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.policy.SuccessThreshold {
			b.transition(StateClosed)
			b.consecutiveFails = 0
		}
	case StateClosed:
		b.consecutiveFails = 0
	}
}

// RecordFailure registers a failed call, opening the breaker once
// consecutive failures reach the threshold (§4.4). A failure while
// HALF_OPEN immediately reopens the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpen()
	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
		b.openedAt = time.Now()
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.policy.FailureThreshold {
			b.transition(StateOpen)
			b.openedAt = time.Now()
		}
	}
}

// Reset forces the breaker back to CLOSED (§4.4 manual reset(service)).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.consecutiveFails = 0
	b.halfOpenSuccess = 0
}

// ExecuteWithResilience composes a breaker check around fn, invoking
// fallback (if non-nil) when the breaker is OPEN instead of propagating
// (§4.4 executeWithResilience). The retry envelope itself lives in
// internal/model's Client; this only gates whether fn is attempted at
// all.
func ExecuteWithResilience[T any](b *Breaker, fn func() (T, error), fallback func() (T, error)) (T, error) {
	if !b.Allow() {
		if fallback != nil {
			return fallback()
		}
		var zero T
		return zero, ErrBreakerOpen(b.service)
	}
	result, err := fn()
	if err != nil {
		b.RecordFailure()
		return result, err
	}
	b.RecordSuccess()
	return result, nil
}
