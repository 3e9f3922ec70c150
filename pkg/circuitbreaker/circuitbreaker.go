package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var ErrOpen = errors.New("circuit breaker is open")

type Option func(*CircuitBreaker)

// WithWindow sets how far back failures are counted.
func WithWindow(window time.Duration) Option {
	return func(cb *CircuitBreaker) { cb.window = window }
}

// WithFailureFilter decides which errors count against the breaker.
// Errors for which isFailure returns false pass through untouched.
func WithFailureFilter(isFailure func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = isFailure }
}

func withClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// CircuitBreaker opens once maxFailures failures fall inside window and
// rejects calls with ErrOpen until cooldown has elapsed. The first call after
// the cooldown is a probe: success closes the breaker, failure reopens it.
type CircuitBreaker struct {
	maxFailures int
	window      time.Duration
	cooldown    time.Duration
	isFailure   func(error) bool
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	probing  bool
}

func New(maxFailures int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		maxFailures: maxFailures,
		window:      60 * time.Second,
		cooldown:    cooldown,
		isFailure:   func(err error) bool { return err != nil },
		now:         time.Now,
		state:       StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute runs fn unless the breaker is open. fn runs without holding the lock.
// A panic in fn counts as a failure and is re-raised.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			cb.after(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	failed := err != nil && cb.isFailure(err)

	if cb.state == StateHalfOpen {
		cb.probing = false
		if failed {
			cb.trip(now)
		} else {
			cb.state = StateClosed
			cb.failures = cb.failures[:0]
		}
		return
	}

	if !failed {
		cb.prune(now)
		return
	}
	cb.failures = append(cb.failures, now)
	cb.prune(now)
	if len(cb.failures) >= cb.maxFailures {
		cb.trip(now)
	}
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.state = StateOpen
	cb.openedAt = now
	cb.failures = cb.failures[:0]
}

func (cb *CircuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.window)
	i := 0
	for i < len(cb.failures) && !cb.failures[i].After(cutoff) {
		i++
	}
	cb.failures = cb.failures[i:]
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
