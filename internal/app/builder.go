package app

import (
	"context"
	"fmt"
	"time"

	"optdesk/internal/config"
	cfgloader "optdesk/internal/config/loader"
	"optdesk/internal/gateway/broker"
	"optdesk/internal/gateway/notifier"
	"optdesk/internal/gateway/snapshot"
	"optdesk/internal/live"
	"optdesk/internal/logger"
	"optdesk/internal/market"
	"optdesk/internal/report"
	"optdesk/internal/scheduler"
	"optdesk/internal/store"
	"optdesk/internal/store/recovery"
	"optdesk/internal/store/sqlite"
	"optdesk/internal/trader"
	controlhttp "optdesk/internal/transport/http/control"
)

type AppBuilder struct {
	cfg *config.Config

	storeFn    func(config.StorageConfig) (store.Store, error)
	brokerFn   func(config.BrokerConfig) (broker.Broker, error)
	sourceFn   func(config.SnapshotConfig) market.Source
	tuningFn   func(config.TuningConfig) (*cfgloader.TuningLoader, error)
	recoveryFn func(config.LiveConfig) (*recovery.File, error)
	controlFn  func(config.AppConfig, controlhttp.Controller, *report.Service, store.JournalRepository) (*controlhttp.Server, error)
	notifierFn func(config.NotifyConfig) notifier.TextNotifier

	now func() time.Time
}

type AppBuilderOption func(*AppBuilder)

// WithStore replaces the sqlite store.
func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(config.StorageConfig) (store.Store, error) { return st, nil }
	}
}

// WithBroker replaces the REST broker client.
func WithBroker(brk broker.Broker) AppBuilderOption {
	return func(b *AppBuilder) {
		b.brokerFn = func(config.BrokerConfig) (broker.Broker, error) { return brk, nil }
	}
}

// WithSource replaces the HTTP snapshot source.
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(config.SnapshotConfig) market.Source { return src }
	}
}

// WithNotifier replaces the Telegram notifier. A nil notifier disables live
// trade notifications.
func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) notifier.TextNotifier { return n }
	}
}

// WithClock pins the clock of the trading actor.
func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) { b.now = now }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		storeFn:    buildStore,
		brokerFn:   buildBroker,
		sourceFn:   buildSource,
		tuningFn:   buildTuningLoader,
		recoveryFn: buildRecovery,
		controlFn:  buildControlServer,
		notifierFn: buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)

	paperState, err := cfg.Trading.PaperState()
	if err != nil {
		return nil, err
	}

	tuning, err := b.tuningFn(cfg.Tuning)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}
	tuningSnap := tuning.Snapshot()

	st, err := b.storeFn(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	cleanup := func() { _ = st.Close() }

	brk, err := b.brokerFn(cfg.Broker)
	if err != nil {
		cleanup()
		return nil, err
	}

	startupLogin(ctx, brk, cfg.Broker)

	recFile, err := b.recoveryFn(cfg.Live)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init recovery record: %w", err)
	}

	engine := live.NewEngine(brk, recFile, st.Ledger(), live.Options{
		Enabled:         cfg.Live.Enabled,
		Exchange:        cfg.Trading.Exchange,
		OrderType:       cfg.Live.OrderType,
		PersistAttempts: cfg.Live.PersistAttempts,
		Now:             b.now,
	})

	tr := trader.NewTrader(trader.Options{
		Live:          engine,
		Broker:        brk,
		Ledger:        st.Ledger(),
		Journal:       st.Journal(),
		History:       market.NewHistory(time.Duration(cfg.Poll.HistoryWindowSeconds)*time.Second, cfg.Poll.HistoryMax),
		Exchange:      cfg.Trading.Exchange,
		Paper:         paperState,
		Tuning:        tuningSnap.Tuning,
		BrokerTimeout: time.Duration(cfg.Broker.TimeoutSeconds) * time.Second,
		Notifier:      b.notifierFn(cfg.Notify),
		Now:           b.now,
	})
	if err := tr.Recover(ctx, recFile); err != nil {
		cleanup()
		return nil, err
	}

	source := b.sourceFn(cfg.Snapshot)
	poller := scheduler.NewPoller(source, tr,
		time.Duration(cfg.Poll.IntervalSeconds)*time.Second,
		time.Duration(cfg.Poll.TickTimeoutSeconds)*time.Second)

	reports := report.NewService(st.Ledger())
	server, err := b.controlFn(cfg.App, tr, reports, st.Journal())
	if err != nil {
		cleanup()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		trader:  tr,
		poller:  poller,
		source:  source,
		server:  server,
		tuning:  tuning,
		store:   st,
		Summary: newStartupSummary(cfg, tuningSnap, tr.Snapshot(), brk != nil),
	}, nil
}

func buildStore(cfg config.StorageConfig) (store.Store, error) {
	return sqlite.NewSqliteStore(cfg.DBPath)
}

// buildBroker returns a nil Broker when the broker section is disabled; live
// operations then fail with ErrBrokerUnavailable.
func buildBroker(cfg config.BrokerConfig) (broker.Broker, error) {
	if !cfg.Enabled {
		logger.Infof("broker disabled, live trading unavailable")
		return nil, nil
	}
	client, err := broker.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init broker client: %w", err)
	}
	logger.Infof("broker enabled: %s user=%s", cfg.BaseURL, cfg.UserID)
	return broker.NewResilient(client, cfg), nil
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	tg := cfg.Telegram
	if !tg.Enabled {
		return nil
	}
	n := notifier.NewTelegram(tg.BotToken, tg.ChatID)
	if tg.BaseURL != "" {
		n.BaseURL = tg.BaseURL
	}
	logger.Infof("telegram notifications enabled chat=%s", tg.ChatID)
	return n
}

// startupLogin opens a broker session before recovery when the second factor
// can be generated locally. Otherwise recovery defers its resync to the
// operator's login.
func startupLogin(ctx context.Context, brk broker.Broker, cfg config.BrokerConfig) {
	if brk == nil || cfg.TOTPSecret == "" {
		return
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := brk.Login(loginCtx, ""); err != nil {
		logger.Warnf("startup broker login failed: %v", err)
		return
	}
	logger.Infof("broker session established at startup")
}

func buildSource(cfg config.SnapshotConfig) market.Source {
	return snapshot.NewHTTPSource(cfg)
}

func buildTuningLoader(cfg config.TuningConfig) (*cfgloader.TuningLoader, error) {
	return cfgloader.NewTuningLoader(cfg.Path)
}

func buildRecovery(cfg config.LiveConfig) (*recovery.File, error) {
	return recovery.NewFile(cfg.RecoveryPath)
}

func buildControlServer(cfg config.AppConfig, ctrl controlhttp.Controller, reports *report.Service, journal store.JournalRepository) (*controlhttp.Server, error) {
	server, err := controlhttp.NewServer(controlhttp.ServerConfig{
		Addr:       cfg.HTTPAddr,
		Controller: ctrl,
		Reports:    reports,
		Journal:    journal,
	})
	if err != nil {
		return nil, fmt.Errorf("init control http: %w", err)
	}
	logger.Infof("control HTTP will listen on %s", server.Addr())
	return server, nil
}
