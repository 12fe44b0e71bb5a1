// Package scheduler drives the poll loop: one snapshot fetch per interval,
// aligned to wall-clock multiples of the interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"optdesk/internal/logger"
	"optdesk/internal/market"
)

// Sink receives poll results. The trader actor implements it.
type Sink interface {
	Polling() bool
	Tick(market.Snapshot) error
	TickFailed(error) error
}

// Poller fetches outside the actor so a slow upstream never blocks control
// commands.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration

	source market.Source
	sink   Sink
	nowFn  func() time.Time
}

func NewPoller(source market.Source, sink Sink, interval, timeout time.Duration) *Poller {
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Poller{
		Interval: interval,
		Timeout:  timeout,
		source:   source,
		sink:     sink,
		nowFn:    time.Now,
	}
}

// Run loops until ctx is done. Ticks are skipped while polling is stopped.
func (p *Poller) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		return fmt.Errorf("poller: invalid interval=%s", p.Interval)
	}
	logger.Infof("Poller: started interval=%s timeout=%s", p.Interval, p.Timeout)
	for {
		wait := p.untilNext(p.nowFn())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("Poller: ctx done, exit")
			return nil
		case <-timer.C:
		}
		if !p.sink.Polling() {
			continue
		}
		if err := p.PollOnce(ctx); err != nil {
			return err
		}
	}
}

// PollOnce fetches one snapshot and hands the outcome to the sink. It only
// fails when the sink is gone.
func (p *Poller) PollOnce(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	snap, err := p.source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warnf("Poller: fetch failed: %v", err)
		err = p.sink.TickFailed(err)
	} else {
		err = p.sink.Tick(snap)
	}
	if err != nil {
		return fmt.Errorf("poller: deliver tick: %w", err)
	}
	return nil
}

func (p *Poller) untilNext(now time.Time) time.Duration {
	next := now.Truncate(p.Interval).Add(p.Interval)
	wait := next.Sub(now)
	if wait <= 0 {
		wait = p.Interval
	}
	return wait
}
