// Package circuit stops the desk from hammering an unreachable broker.
package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"optdesk/internal/logger"
)

// ErrOpen is returned by Do while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"CLOSED", "OPEN", "HALF-OPEN"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// CircuitBreaker trips after threshold consecutive failures and rejects calls
// until the cooldown has passed. It then admits one trial call at a time:
// a success closes it, a failure starts a fresh cooldown.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	now      func() time.Time
	state    State
	streak   int
	reopenAt time.Time
	trial    bool
}

func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		threshold: max(threshold, 1),
		cooldown:  max(cooldown, 0),
		now:       time.Now,
	}
}

// SetClock replaces the time source; tests use it to step past the cooldown.
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	cb.mu.Lock()
	cb.now = now
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may go out now. A true result in the
// half-open state reserves the single trial slot until the outcome is
// recorded.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Before(cb.reopenAt) {
			return false
		}
		cb.moveTo(StateHalfOpen)
	}
	if cb.trial {
		return false
	}
	cb.trial = true
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trial = false
	cb.streak = 0
	if cb.state != StateClosed {
		cb.moveTo(StateClosed)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trial = false
	cb.streak++
	if cb.state == StateHalfOpen || cb.streak >= cb.threshold {
		cb.reopenAt = cb.now().Add(cb.cooldown)
		if cb.state != StateOpen {
			cb.moveTo(StateOpen)
		}
	}
}

// release frees the trial slot without judging the broker's health.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	cb.trial = false
	cb.mu.Unlock()
}

// Do runs fn through the breaker. neutral reports errors that say nothing
// about the broker's health (rejections, caller cancellation, validation);
// they leave the failure streak alone. neutral may be nil.
func (cb *CircuitBreaker) Do(fn func() error, neutral func(error) bool) error {
	if !cb.Allow() {
		return fmt.Errorf("%s: %w", cb.name, ErrOpen)
	}
	err := fn()
	switch {
	case err == nil:
		cb.RecordSuccess()
	case neutral != nil && neutral(err):
		cb.release()
	default:
		cb.RecordFailure()
	}
	return err
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(to State) {
	from := cb.state
	cb.state = to
	if to == StateOpen {
		logger.Warnf("Breaker %s: %s -> %s after %d failures, retry after %s",
			cb.name, from, to, cb.streak, cb.reopenAt.Format(time.TimeOnly))
		return
	}
	logger.Infof("Breaker %s: %s -> %s", cb.name, from, to)
}
