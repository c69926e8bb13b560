package batch

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the circuit breaker's admission state
type State string

const (
	// StateClosed admits everything
	StateClosed State = "closed"

	// StateOpen rejects everything until the cooldown elapses
	StateOpen State = "open"

	// StateHalfOpen admits a single trial at a time
	StateHalfOpen State = "half_open"
)

// BreakerConfig holds the breaker's thresholds
type BreakerConfig struct {
	// FailureRateThreshold opens the breaker once the rolling failure
	// rate reaches it, provided MinSamples outcomes were observed
	FailureRateThreshold float64

	// ConsecutiveFailures opens the breaker regardless of rate
	ConsecutiveFailures int

	// MinSamples gates the rate check so a single early failure cannot
	// trip the breaker
	MinSamples int

	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration

	// SuccessThreshold is how many consecutive half-open successes close
	// the breaker again
	SuccessThreshold int
}

// DefaultBreakerConfig returns sensible breaker defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureRateThreshold: 0.5,
		ConsecutiveFailures:  5,
		MinSamples:           10,
		Cooldown:             30 * time.Second,
		SuccessThreshold:     2,
	}
}

// CircuitBreaker guards a batch run against hammering a failing backend.
// Closed counts outcomes and trips on either threshold; open rejects until
// the cooldown elapses; half-open admits one trial at a time and closes
// after enough consecutive successes.
type CircuitBreaker struct {
	mu     sync.Mutex
	cfg    BreakerConfig
	logger *zap.Logger

	state            State
	totalCount       int
	failureCount     int
	failureStreak    int
	successStreak    int
	openedAt         time.Time
	halfOpenInFlight bool

	// now is swapped in tests to step through the cooldown
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(cfg BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if cfg.ConsecutiveFailures < 1 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	return &CircuitBreaker{
		cfg:    cfg,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. In half-open it admits exactly
// one in-flight trial; callers that get false must skip, not wait.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return false
		}
		cb.transitionLocked(StateHalfOpen)
		cb.halfOpenInFlight = true
		return true
	case StateHalfOpen:
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	}
	return false
}

// RecordSuccess feeds a successful outcome back into the breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCount++
	cb.failureStreak = 0

	if cb.state == StateHalfOpen {
		cb.halfOpenInFlight = false
		cb.successStreak++
		if cb.successStreak >= cb.cfg.SuccessThreshold {
			cb.resetLocked()
			cb.transitionLocked(StateClosed)
		}
	}
}

// RecordFailure feeds a failed outcome back into the breaker, tripping it
// when a threshold is crossed
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCount++
	cb.failureCount++
	cb.failureStreak++
	cb.successStreak = 0

	if cb.state == StateHalfOpen {
		cb.halfOpenInFlight = false
		cb.openLocked()
		return
	}

	if cb.state != StateClosed {
		return
	}

	if cb.failureStreak >= cb.cfg.ConsecutiveFailures {
		cb.openLocked()
		return
	}
	if cb.totalCount >= cb.cfg.MinSamples &&
		float64(cb.failureCount)/float64(cb.totalCount) >= cb.cfg.FailureRateThreshold {
		cb.openLocked()
	}
}

// State returns the current admission state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// openLocked trips the breaker and starts the cooldown. Caller holds cb.mu.
func (cb *CircuitBreaker) openLocked() {
	cb.openedAt = cb.now()
	cb.halfOpenInFlight = false
	cb.successStreak = 0
	cb.transitionLocked(StateOpen)
}

// resetLocked clears the rolling counters. Caller holds cb.mu.
func (cb *CircuitBreaker) resetLocked() {
	cb.totalCount = 0
	cb.failureCount = 0
	cb.failureStreak = 0
	cb.successStreak = 0
	cb.halfOpenInFlight = false
}

// transitionLocked moves to a new state with a log line. Caller holds cb.mu.
func (cb *CircuitBreaker) transitionLocked(next State) {
	if cb.state == next {
		return
	}
	cb.logger.Info("circuit breaker state change",
		zap.String("from", string(cb.state)),
		zap.String("to", string(next)))
	cb.state = next
}
