package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Testing with one probe
)

// ErrCircuitOpen is returned by Execute when the breaker rejects a call
// and no fallback was supplied.
var ErrCircuitOpen = errors.New("circuit open")

// Settings configure a single breaker. Zero values fall back to the
// registry defaults.
type Settings struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

type CircuitBreaker struct {
	mutex            sync.Mutex
	name             string
	state            State
	failures         int
	successes        int
	lastFailure      time.Time
	lastStateChange  time.Time
	failureThreshold int
	resetTimeout     time.Duration
}

// Status is a read-only snapshot of a breaker, safe to serialize.
type Status struct {
	Name         string        `json:"name"`
	State        string        `json:"state"`
	FailureCount int           `json:"failure_count"`
	SuccessCount int           `json:"success_count"`
	LastFailure  time.Time     `json:"last_failure"`
	TimeInState  time.Duration `json:"time_in_state"`
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
		lastStateChange:  time.Now(),
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a call may proceed. From OPEN it transitions to
// HALF_OPEN once the reset timeout has elapsed since the last failure,
// admitting a single probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}

		return false
	case StateHalfOpen:
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.successes++
	cb.failures = 0

	if cb.state != StateClosed {
		cb.transitionTo(StateClosed)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == StateHalfOpen {
		cb.transitionTo(StateOpen)
		return
	}

	if cb.state == StateClosed && cb.failures >= cb.failureThreshold {
		cb.transitionTo(StateOpen)
	}
}

// Execute runs op under breaker protection. When the breaker rejects the
// call, fallback is invoked if non-nil, otherwise ErrCircuitOpen is
// returned. When op fails and the failure tripped the breaker open, the
// fallback (if any) covers this call as well.
func (cb *CircuitBreaker) Execute(op func() error, fallback func() error) error {
	if !cb.Allow() {
		if fallback != nil {
			return fallback()
		}
		return fmt.Errorf("breaker %s: %w", cb.name, ErrCircuitOpen)
	}

	if err := op(); err != nil {
		cb.RecordFailure()
		if fallback != nil && cb.State() == StateOpen {
			return fallback()
		}
		return err
	}

	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Status() Status {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Status{
		Name:         cb.name,
		State:        cb.state.String(),
		FailureCount: cb.failures,
		SuccessCount: cb.successes,
		LastFailure:  cb.lastFailure,
		TimeInState:  time.Since(cb.lastStateChange),
	}
}

// transitionTo must be called with the mutex held.
func (cb *CircuitBreaker) transitionTo(newState State) {
	cb.state = newState
	cb.lastStateChange = time.Now()
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}
