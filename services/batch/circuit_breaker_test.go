package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// clock steps a breaker through its cooldown without sleeping
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *clock) {
	cb := NewCircuitBreaker(cfg, zap.NewNop())
	clk := &clock{t: time.Now()}
	cb.now = clk.now
	return cb, clk
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(DefaultBreakerConfig())

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
		assert.True(t, cb.Allow(), "breaker must stay closed below the streak threshold")
	}

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	cb, clk := newTestBreaker(DefaultBreakerConfig())

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	assert.False(t, cb.Allow())

	clk.advance(31 * time.Second)

	assert.True(t, cb.Allow(), "cooldown elapsed, one trial admitted")
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one trial may be in flight")

	// Two consecutive successes close the breaker
	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(DefaultBreakerConfig())

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	clk.advance(31 * time.Second)
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow(), "the cooldown restarts after a failed trial")

	clk.advance(29 * time.Second)
	assert.False(t, cb.Allow())

	clk.advance(2 * time.Second)
	assert.True(t, cb.Allow())
}

func TestBreakerOpensOnFailureRate(t *testing.T) {
	cb, _ := newTestBreaker(DefaultBreakerConfig())

	// Alternate outcomes so the streak never trips; the 50% rate over 10
	// samples trips instead
	for i := 0; i < 5; i++ {
		cb.RecordSuccess()
		cb.RecordFailure()
	}

	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerIgnoresEarlyFailures(t *testing.T) {
	cb, _ := newTestBreaker(DefaultBreakerConfig())

	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestBreakerClosesCleanAfterRecovery(t *testing.T) {
	cb, clk := newTestBreaker(DefaultBreakerConfig())

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	clk.advance(31 * time.Second)

	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.True(t, cb.Allow())
	cb.RecordSuccess()

	// Counters are reset; one new failure must not trip the rate check
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
}
