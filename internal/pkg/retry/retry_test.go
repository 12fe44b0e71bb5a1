package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 60 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	bad := errors.New("bad request")
	err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return Permanent(bad)
	})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
