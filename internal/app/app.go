package app

import (
	"context"
	"fmt"
	"time"

	"optdesk/internal/config"
	cfgloader "optdesk/internal/config/loader"
	"optdesk/internal/logger"
	"optdesk/internal/market"
	"optdesk/internal/scheduler"
	"optdesk/internal/store"
	"optdesk/internal/trader"
	controlhttp "optdesk/internal/transport/http/control"

	"golang.org/x/sync/errgroup"
)

const tuningApplyTimeout = 5 * time.Second

// App wires the trading actor to its poll loop, control server and tunables
// watcher.
type App struct {
	cfg     *config.Config
	trader  *trader.Trader
	poller  *scheduler.Poller
	source  market.Source
	server  *controlhttp.Server
	tuning  *cfgloader.TuningLoader
	store   store.Store
	Summary *StartupSummary
}

// NewApp builds the application from cfg without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts every component and blocks until ctx is done or one of them
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.trader == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	if a.Summary != nil {
		logger.InfoBlock(a.Summary.String())
	}

	a.trader.Start()
	defer a.trader.Stop()

	snap := a.tuning.Snapshot()
	if err := a.trader.SetTuning(ctx, snap.Tuning, snap.Version); err != nil {
		return fmt.Errorf("apply tuning: %w", err)
	}
	a.tuning.Subscribe(func(s cfgloader.TuningSnapshot) {
		applyCtx, cancel := context.WithTimeout(ctx, tuningApplyTimeout)
		defer cancel()
		if err := a.trader.SetTuning(applyCtx, s.Tuning, s.Version); err != nil {
			logger.Errorf("apply tuning version %d failed: %v", s.Version, err)
		}
	})
	if a.cfg.Poll.AutoStart {
		if err := a.trader.SetPolling(ctx, true); err != nil {
			return fmt.Errorf("start polling: %w", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.server != nil {
		group.Go(func() error {
			if err := a.server.Start(ctx); err != nil {
				return fmt.Errorf("control http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.poller.Run(ctx)
	})
	if a.cfg.Tuning.Watch {
		group.Go(func() error {
			if err := a.tuning.Watch(ctx); err != nil {
				// A broken watcher only loses hot reload.
				logger.Errorf("tuning watcher stopped: %v", err)
			}
			return nil
		})
	}
	return group.Wait()
}

// Trader exposes the actor for tests and replay harnesses.
func (a *App) Trader() *trader.Trader {
	if a == nil {
		return nil
	}
	return a.trader
}

func (a *App) close() {
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			logger.Warnf("close snapshot source: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("close store: %v", err)
		}
	}
}
