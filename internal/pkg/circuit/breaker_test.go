package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 15, 0, 0, time.UTC)
	cb := NewCircuitBreaker("broker", 2, 30*time.Second)
	cb.SetClock(func() time.Time { return now })

	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Do(func() error { return boom }, nil), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Do(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(31 * time.Second)
	assert.NoError(t, cb.Do(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerSkipsIgnoredErrors(t *testing.T) {
	cb := NewCircuitBreaker("broker", 1, time.Minute)
	ignored := errors.New("bad input")
	for i := 0; i < 3; i++ {
		_ = cb.Do(func() error { return ignored }, func(err error) bool { return errors.Is(err, ignored) })
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("broker", 1, time.Second)
	cb.SetClock(func() time.Time { return now })
	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestHalfOpenAdmitsOneTrialCall(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 15, 0, 0, time.UTC)
	cb := NewCircuitBreaker("broker", 1, 10*time.Second)
	cb.SetClock(func() time.Time { return now })
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow(), "second caller must wait for the trial outcome")
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
	assert.True(t, cb.Allow())
}

func TestNeutralErrorFreesTrialSlot(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 15, 0, 0, time.UTC)
	cb := NewCircuitBreaker("broker", 1, time.Second)
	cb.SetClock(func() time.Time { return now })
	cb.RecordFailure()
	now = now.Add(2 * time.Second)

	rejected := errors.New("rejected")
	neutral := func(err error) bool { return errors.Is(err, rejected) }
	assert.ErrorIs(t, cb.Do(func() error { return rejected }, neutral), rejected)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Do(func() error { return nil }, neutral))
	assert.Equal(t, StateClosed, cb.State())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "HALF-OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(7).String())
}
