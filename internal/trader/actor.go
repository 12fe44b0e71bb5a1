// Package trader is the single sequencer that owns the paper and live trade
// state. Poll ticks and operator commands are messages to one goroutine, so
// no two transitions ever interleave.
package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/gateway/broker"
	"optdesk/internal/gateway/notifier"
	"optdesk/internal/live"
	"optdesk/internal/logger"
	"optdesk/internal/market"
	"optdesk/internal/signal"
	"optdesk/internal/store"
	"optdesk/internal/store/recovery"

	"github.com/google/uuid"
)

// ErrStopped is returned to senders once the actor has shut down.
var ErrStopped = errors.New("trader is stopped")

// Options wires the collaborators. Broker, Ledger, Journal and Notifier may
// be nil.
type Options struct {
	Live          *live.Engine
	Broker        broker.Broker
	Ledger        store.LedgerRepository
	Journal       store.JournalRepository
	Notifier      notifier.TextNotifier
	Signal        signal.Provider
	History       *market.History
	Exchange      string
	Paper         domain.PaperTradeState
	Tuning        domain.Tuning
	BrokerTimeout time.Duration
	Now           func() time.Time
}

// RecoveryLoader reads the persisted live state once at startup.
type RecoveryLoader interface {
	Load() (recovery.Record, bool, error)
}

// Trader is the event-driven actor of the system.
type Trader struct {
	live          *live.Engine
	broker        broker.Broker
	ledger        store.LedgerRepository
	journal       store.JournalRepository
	notifier      notifier.TextNotifier
	signal        signal.Provider
	history       *market.History
	exchange      string
	brokerTimeout time.Duration
	now           func() time.Time

	eventRegistry *HandlerRegistry

	msgCh    chan EventEnvelope
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	state         *State
	stateSnapshot atomic.Value
}

func NewTrader(opts Options) *Trader {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Signal == nil {
		opts.Signal = signal.Heuristic{}
	}
	if opts.History == nil {
		opts.History = market.NewHistory(5*time.Minute, 120)
	}
	if opts.BrokerTimeout <= 0 {
		opts.BrokerTimeout = 10 * time.Second
	}
	if opts.Live == nil {
		opts.Live = live.NewEngine(nil, nil, opts.Ledger, live.Options{Enabled: false, Exchange: opts.Exchange})
	}
	eventReg := NewHandlerRegistry()
	eventReg.RegisterDefaultHandlers()

	tr := &Trader{
		live:          opts.Live,
		broker:        opts.Broker,
		ledger:        opts.Ledger,
		journal:       opts.Journal,
		notifier:      opts.Notifier,
		signal:        opts.Signal,
		history:       opts.History,
		exchange:      opts.Exchange,
		brokerTimeout: opts.BrokerTimeout,
		now:           opts.Now,
		eventRegistry: eventReg,
		msgCh:         make(chan EventEnvelope, 64),
		stopCh:        make(chan struct{}),
		state: &State{
			Paper:       opts.Paper.Clone(),
			LiveEnabled: opts.Live.Enabled(),
			LoggedIn:    hasSession(opts.Broker),
			Tuning:      opts.Tuning,
		},
	}
	tr.refreshSnapshot()
	return tr
}

// Recover installs the persisted live state and reconciles with the broker
// when it still claims a position. Without a broker session the recovered
// trade is kept as is and the resync runs after the first successful login.
// It must run before Start.
func (t *Trader) Recover(ctx context.Context, loader RecoveryLoader) error {
	if loader == nil {
		return nil
	}
	rec, ok, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load recovery record: %w", err)
	}
	if !ok {
		logger.Infof("Trader: no recovery record, starting flat")
		return nil
	}
	t.live.Restore(rec.Live)
	switch {
	case !rec.Live.NeedsResync():
		logger.Infof("Trader: recovered %d live history entries saved at %s", len(rec.Live.History), rec.SavedAt.Format(time.RFC3339))
	case !broker.SessionReady(t.broker):
		t.state.ResyncPending = true
		logger.Warnf("Trader: recovered %s, resync deferred until broker login", rec.Live.Current)
	default:
		logger.Infof("Trader: recovered %s, reconciling with broker", rec.Live.Current)
		if err := t.withBroker(ctx, t.live.Resync); err != nil {
			// Resync leaves "no trade" on failure; the operator can retry.
			t.state.recordError(err, t.now())
			logger.Errorf("Trader: startup resync failed: %v", err)
		}
	}
	t.refreshSnapshot()
	return nil
}

// hasSession is true only for brokers that report a live login.
func hasSession(b broker.Broker) bool {
	s, ok := b.(broker.Session)
	return ok && s.LoggedIn()
}

// runPendingResync reconciles a recovered trade once a session exists.
func (t *Trader) runPendingResync() {
	if !t.state.ResyncPending {
		return
	}
	t.state.ResyncPending = false
	if err := t.withBroker(context.Background(), t.live.Resync); err != nil {
		t.state.recordError(err, t.now())
		logger.Errorf("Trader: deferred resync failed: %v", err)
		return
	}
	logger.Infof("Trader: deferred resync done, current=%s", t.live.State().Current)
}

func (t *Trader) Start() {
	t.wg.Add(1)
	go t.runLoop()
}

func (t *Trader) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

func (t *Trader) Send(evt EventEnvelope) error {
	select {
	case <-t.stopCh:
		return ErrStopped
	default:
	}
	select {
	case t.msgCh <- evt:
		return nil
	case <-t.stopCh:
		return ErrStopped
	}
}

func (t *Trader) SendSync(ctx context.Context, evt EventEnvelope) error {
	if evt.ReplyCh == nil {
		evt.ReplyCh = make(chan error, 1)
	}
	if err := t.Send(evt); err != nil {
		return err
	}
	select {
	case err := <-evt.ReplyCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.stopCh:
		return fmt.Errorf("%w during sync call", ErrStopped)
	}
}

// Snapshot returns the latest published state. Callers must not modify it.
func (t *Trader) Snapshot() *State {
	val := t.stateSnapshot.Load()
	if val == nil {
		return &State{}
	}
	return val.(*State)
}

// Polling reports whether the scheduler should fetch snapshots.
func (t *Trader) Polling() bool { return t.Snapshot().Polling }

func (t *Trader) refreshSnapshot() {
	t.state.Live = t.live.State()
	t.state.HistoryLen = t.history.Len()
	t.state.UpdatedAt = t.now()
	t.stateSnapshot.Store(t.state.clone())
}

func (t *Trader) runLoop() {
	defer t.wg.Done()
	logger.Infof("Trader Actor started")
	for {
		select {
		case evt := <-t.msgCh:
			t.handleEvent(evt)
		case <-t.stopCh:
			logger.Infof("Trader Actor stopping")
			return
		}
	}
}

// handleEvent runs one handler. Panics become errors, operator commands are
// journaled and the result is sent to ReplyCh.
func (t *Trader) handleEvent(evt EventEnvelope) {
	var err error
	start := time.Now()
	prevLive := t.state.Live

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Trader panic handling event %s: %v\n%s", evt.Type, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
		t.refreshSnapshot()
		t.notifyLive(prevLive, t.state.Live)
		dur := time.Since(start)
		if shouldJournal(evt.Type) {
			t.recordCommand(evt, err, dur)
		}
		if evt.ReplyCh != nil {
			evt.ReplyCh <- err
			close(evt.ReplyCh)
		}
		if dur > 2*time.Second {
			logger.Warnf("Slow event %s took %v", evt.Type, dur)
		}
	}()

	handler, ok := t.eventRegistry.Get(evt.Type)
	if !ok {
		err = fmt.Errorf("%w: no handler for event type %s", domain.ErrInvalidInput, evt.Type)
		logger.Warnf("No handler registered for event type: %s", evt.Type)
		return
	}
	err = handler.Handle(NewHandlerContext(t), evt.Payload, evt.ID)
	if err != nil {
		logger.Warnf("Trader failed to handle %s: %v", evt.Type, err)
	}
}

// withBroker runs fn under the per-call broker deadline.
func (t *Trader) withBroker(parent context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, t.brokerTimeout)
	defer cancel()
	return fn(ctx)
}

func newEnvelope(typ EventType, payload any) (EventEnvelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return EventEnvelope{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		raw = data
	}
	return EventEnvelope{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}

func decode[T any](typ EventType, payload []byte) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %s payload: %v", domain.ErrInvalidInput, typ, err)
	}
	return v, nil
}
