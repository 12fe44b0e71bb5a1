// Package live executes real trades through the broker and keeps the local
// LiveTradeState consistent with the broker's books.
package live

import (
	"context"
	"fmt"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/gateway/broker"
	"optdesk/internal/logger"
	"optdesk/internal/market"
	"optdesk/internal/pkg/retry"
	"optdesk/internal/selector"
	"optdesk/internal/store"
	"optdesk/internal/store/model"
)

// StateStore durably records the live state after every committed
// transition.
type StateStore interface {
	Save(domain.LiveTradeState) error
}

// Options configure the engine.
type Options struct {
	// Enabled is the process-wide live capability flag.
	Enabled         bool
	Exchange        string
	OrderType       string
	PersistAttempts int
	Now             func() time.Time
}

// Engine owns the LiveTradeState. It is not safe for concurrent use; the
// trader actor is its only caller.
type Engine struct {
	broker broker.Broker
	store  StateStore
	ledger store.LedgerRepository
	opts   Options
	state  domain.LiveTradeState
}

// NewEngine builds an engine. broker and ledger may be nil: without a broker
// every live operation fails with ErrBrokerUnavailable.
func NewEngine(b broker.Broker, st StateStore, ledger store.LedgerRepository, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OrderType == "" {
		opts.OrderType = "MKT"
	}
	if opts.PersistAttempts <= 0 {
		opts.PersistAttempts = 3
	}
	return &Engine{broker: b, store: st, ledger: ledger, opts: opts}
}

// State returns a deep copy of the live state.
func (e *Engine) State() domain.LiveTradeState { return e.state.Clone() }

// Enabled reports the capability flag.
func (e *Engine) Enabled() bool { return e.opts.Enabled }

// Restore installs a recovered state without persisting it.
func (e *Engine) Restore(st domain.LiveTradeState) { e.state = st.Clone() }

// EntryRequest describes a live entry mirrored from the paper engine or
// forced by the operator.
type EntryRequest struct {
	Instrument selector.Instrument
	Mode       domain.StrategyMode
	Qty        int
	Product    domain.ProductType
	Trigger    Trigger
	Armed      bool
}

// CheckEntry applies the arm, capability and single-position gates.
func (e *Engine) CheckEntry(armed bool) error {
	switch {
	case !e.opts.Enabled:
		return domain.ErrLiveDisabled
	case !armed:
		return domain.ErrNotArmed
	case e.broker == nil:
		return fmt.Errorf("%w: no broker configured", domain.ErrBrokerUnavailable)
	case e.state.Current.Active():
		return fmt.Errorf("%w: live trade %s is %s", domain.ErrIllegalTransition, e.state.Current.ID, e.state.Current.Status)
	}
	return nil
}

// Enter places a market buy. On broker failure the state is unchanged. The
// entry price is provisional until the fill is confirmed.
func (e *Engine) Enter(ctx context.Context, req EntryRequest) (*domain.Trade, error) {
	if err := e.CheckEntry(req.Armed); err != nil {
		return nil, err
	}
	inst := req.Instrument
	if inst.TradingSymbol == "" || req.Qty <= 0 {
		return nil, fmt.Errorf("%w: entry needs an instrument and a positive qty", domain.ErrInvalidInput)
	}
	if !req.Mode.IsConcrete() {
		return nil, fmt.Errorf("%w: entry needs a concrete mode, got %q", domain.ErrInvalidInput, req.Mode)
	}
	remarks := EntryRemarks(req.Trigger, req.Mode)
	orderNo, err := e.broker.PlaceOrder(ctx, broker.OrderRequest{
		Side:          broker.SideBuy,
		Product:       req.Product,
		Exchange:      e.opts.Exchange,
		TradingSymbol: inst.TradingSymbol,
		Qty:           req.Qty,
		OrderType:     e.opts.OrderType,
		Remarks:       remarks,
	})
	if err != nil {
		return nil, fmt.Errorf("place entry order: %w", err)
	}
	now := e.opts.Now()
	trade := &domain.Trade{
		ID:            tradeID(orderNo),
		Status:        domain.StatusOpen,
		Mode:          req.Mode,
		Strike:        inst.Strike,
		OptType:       inst.OptType,
		TradingSymbol: inst.TradingSymbol,
		Exchange:      e.opts.Exchange,
		Qty:           req.Qty,
		Product:       req.Product,
		EntryTs:       now,
		EntryOrderNo:  orderNo,
		EntryPrice:    inst.LTP,
		PeakPrice:     inst.LTP,
		SLPrice:       domain.StopPrice(inst.LTP, req.Mode),
	}
	e.state.Current = trade
	e.state.AppendHistory(trade)
	e.decide(now, domain.ActionEnter, req.Mode, fmt.Sprintf("%s entry %s order %s at ~%.2f", req.Trigger, inst.TradingSymbol, orderNo, inst.LTP))
	logger.Trade("live entry placed", "trade", trade.ID, "symbol", inst.TradingSymbol, "qty", req.Qty, "remarks", remarks)
	return trade.Clone(), e.persist()
}

// Exit places a market sell for the OPEN trade and moves it to EXITING.
func (e *Engine) Exit(ctx context.Context, reason domain.ExitReason) error {
	cur := e.state.Current
	if cur == nil || cur.Status != domain.StatusOpen {
		return fmt.Errorf("%w: no OPEN live trade", domain.ErrIllegalTransition)
	}
	if e.broker == nil {
		return fmt.Errorf("%w: no broker configured", domain.ErrBrokerUnavailable)
	}
	orderNo, err := e.broker.PlaceOrder(ctx, broker.OrderRequest{
		Side:          broker.SideSell,
		Product:       cur.Product,
		Exchange:      cur.Exchange,
		TradingSymbol: cur.TradingSymbol,
		Qty:           cur.Qty,
		OrderType:     e.opts.OrderType,
		Remarks:       ExitRemarks(reason),
	})
	if err != nil {
		return fmt.Errorf("place exit order: %w", err)
	}
	cur.Status = domain.StatusExiting
	cur.ExitOrderNo = orderNo
	cur.ExitReason = reason
	e.state.AppendHistory(cur)
	e.decide(e.opts.Now(), domain.ActionExit, cur.Mode, fmt.Sprintf("%s exit order %s", reason, orderNo))
	logger.Trade("live exit placed", "trade", cur.ID, "reason", string(reason), "order", orderNo)
	return e.persist()
}

// ManageInput carries the exit parameters of one tick.
type ManageInput struct {
	Snapshot       market.Snapshot
	Style          domain.ExitStyle
	TargetPct      float64
	TrailThreshold float64
}

// Manage ratchets the peak of the OPEN trade and fires an exit when a rule
// triggers. It returns the rule that fired, if any.
func (e *Engine) Manage(ctx context.Context, in ManageInput) (domain.ExitReason, error) {
	cur := e.state.Current
	if cur == nil || cur.Status != domain.StatusOpen {
		return "", nil
	}
	ltp := in.Snapshot.LTP(cur.Strike, cur.OptType)
	if ltp <= 0 {
		return "", nil
	}
	cur.Ratchet(ltp)
	reason := domain.EvaluateExit(cur, ltp, in.Style, in.TargetPct, in.TrailThreshold)
	if reason == "" {
		return "", nil
	}
	return reason, e.Exit(ctx, reason)
}

// Confirm settles pending broker orders: an unconfirmed entry takes its real
// fill price, a dead entry is dropped, a filled exit closes the trade and a
// dead exit reverts the trade to OPEN.
func (e *Engine) Confirm(ctx context.Context) error {
	cur := e.state.Current
	if cur == nil || e.broker == nil {
		return nil
	}
	pendingEntry := cur.Status == domain.StatusOpen && !cur.EntryConfirmed
	pendingExit := cur.Status == domain.StatusExiting
	if !pendingEntry && !pendingExit {
		return nil
	}
	fills, err := e.broker.TradeBook(ctx)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if pendingEntry {
		if px, qty, ok := broker.AverageFill(fills, cur.EntryOrderNo); ok {
			cur.EntryPrice = px
			cur.Qty = qty
			cur.PeakPrice = max(cur.PeakPrice, px)
			cur.SLPrice = domain.StopPrice(px, cur.Mode)
			cur.EntryConfirmed = true
			e.state.AppendHistory(cur)
			logger.Trade("live entry filled", "trade", cur.ID, "price", px, "qty", qty)
			return e.persist()
		}
		order, found, err := e.findOrder(ctx, cur.EntryOrderNo)
		if err != nil || !found || !order.Dead() {
			return err
		}
		logger.Warnf("live entry %s %s: %s, dropping trade", cur.EntryOrderNo, order.Status, order.RejectReason)
		e.state.History = dropTrade(e.state.History, cur.ID)
		e.state.Current = nil
		return e.persist()
	}

	if px, _, ok := broker.AverageFill(fills, cur.ExitOrderNo); ok {
		at := e.opts.Now()
		if ts := lastFillTime(fills, cur.ExitOrderNo); !ts.IsZero() {
			at = ts
		}
		e.close(ctx, cur, px, at, cur.ExitReason)
		return e.persist()
	}
	order, found, err := e.findOrder(ctx, cur.ExitOrderNo)
	if err != nil || !found || !order.Dead() {
		return err
	}
	logger.Warnf("live exit %s %s: %s, trade back to OPEN", cur.ExitOrderNo, order.Status, order.RejectReason)
	cur.Status = domain.StatusOpen
	cur.ExitOrderNo = ""
	cur.ExitReason = ""
	e.state.AppendHistory(cur)
	return e.persist()
}

func (e *Engine) close(ctx context.Context, cur *domain.Trade, px float64, at time.Time, reason domain.ExitReason) {
	cur.Close(px, at, reason)
	e.state.AppendHistory(cur)
	logger.Trade("live trade closed", "trade", cur.ID, "reason", string(reason), "exit", px, "pnl", *cur.PnL)
	e.record(ctx, cur)
}

// record appends a CLOSED trade to the ledger. A failure is logged; the
// dedupe key makes a later resync retry safe.
func (e *Engine) record(ctx context.Context, t *domain.Trade) {
	if e.ledger == nil || t == nil || t.Status != domain.StatusClosed {
		return
	}
	if _, err := e.ledger.Append(ctx, model.FromTrade(model.SourceLive, *t)); err != nil {
		logger.Errorf("ledger append for %s failed: %v", t.ID, err)
	}
}

func (e *Engine) findOrder(ctx context.Context, orderNo string) (broker.Order, bool, error) {
	orders, err := e.broker.OrderBook(ctx)
	if err != nil {
		return broker.Order{}, false, fmt.Errorf("confirm: %w", err)
	}
	for _, o := range orders {
		if o.OrderNo == orderNo {
			return o, true, nil
		}
	}
	return broker.Order{}, false, nil
}

// persist saves the state, retrying a few times. The in-memory state is
// kept on failure; the caller sees ErrPersist.
func (e *Engine) persist() error {
	if e.store == nil {
		return nil
	}
	snapshot := e.state.Clone()
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: e.opts.PersistAttempts, BaseDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond},
		func(context.Context) error { return e.store.Save(snapshot) })
	if err != nil {
		logger.Errorf("persist live state failed: %v", err)
		return fmt.Errorf("%w: %w", domain.ErrPersist, err)
	}
	return nil
}

func (e *Engine) decide(ts time.Time, action string, mode domain.StrategyMode, reasons ...string) {
	e.state.LastDecision = &domain.Decision{Ts: ts, Action: action, Reasons: reasons, Mode: mode}
}

func tradeID(entryOrderNo string) string { return "LIVE-" + entryOrderNo }

func dropTrade(hist []domain.Trade, id string) []domain.Trade {
	out := hist[:0:0]
	for _, t := range hist {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func lastFillTime(fills []broker.Fill, orderNo string) time.Time {
	var ts time.Time
	for _, f := range fills {
		if f.OrderNo == orderNo && f.Time.After(ts) {
			ts = f.Time
		}
	}
	return ts
}
