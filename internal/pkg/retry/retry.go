// Package retry runs an operation a bounded number of times with exponential
// backoff between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retry loop. Zero values fall back to the defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

const (
	defaultAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 2 * time.Second
)

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Backoff returns BaseDelay * 2^attempt, capped at MaxDelay. A negative
// attempt yields BaseDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		return p.BaseDelay
	}
	if attempt > 30 {
		return p.MaxDelay
	}
	d := p.BaseDelay * time.Duration(1<<attempt)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.normalized()
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
