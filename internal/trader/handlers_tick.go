package trader

import (
	"context"
	"errors"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/live"
	"optdesk/internal/logger"
	"optdesk/internal/market"
	"optdesk/internal/paper"
	"optdesk/internal/store/model"
)

// handleTick runs one decision cycle: history, paper step, then the live
// leg. An active live trade is confirmed and managed in every trade mode;
// only the mirrored entry needs LIVE. Collaborator failures end up in
// LastError; the tick itself never fails.
func (t *Trader) handleTick(payload []byte) error {
	p, err := decode[TickPayload](EvtTick, payload)
	if err != nil {
		return err
	}
	snap := p.Snapshot
	if !t.history.Push(snap) {
		logger.Debugf("Trader: dropped out-of-order snapshot ts=%s", snap.Ts)
		return nil
	}
	st := t.state
	st.Latest = &snap
	ts := snap.Ts
	st.LastTickAt = &ts
	st.LastError = ""
	st.LastErrorAt = nil

	out := paper.Step(st.Paper, t.paperInput())
	st.Paper = out.State
	if out.Entered != nil {
		logger.Trade("paper entry", "trade", out.Entered.ID, "symbol", out.Entered.TradingSymbol, "price", out.Entered.EntryPrice, "mode", string(out.Entered.Mode))
	}
	if out.Exited != nil {
		logger.Trade("paper exit", "trade", out.Exited.ID, "reason", string(out.Exited.ExitReason), "pnl", *out.Exited.PnL)
		t.recordPaperClose(out.Exited)
	}

	mirror := st.Paper.TradeMode == domain.TradeModeLive
	switch {
	case st.ResyncPending:
		if mirror || t.live.State().Current.Active() {
			logger.Debugf("Trader: live leg waits for the post-login resync")
		}
	case mirror || t.live.State().Current.Active():
		if err := t.driveLive(snap, out, mirror); err != nil {
			st.recordError(err, t.now())
			logger.Errorf("Trader: live tick: %v", err)
		}
	}
	return nil
}

func (t *Trader) handleTickFailed(payload []byte) error {
	p, err := decode[TickFailedPayload](EvtTickFailed, payload)
	if err != nil {
		return err
	}
	at := p.At
	if at.IsZero() {
		at = t.now()
	}
	t.state.LastError = p.Error
	t.state.LastErrorAt = &at
	return nil
}

func (t *Trader) driveLive(snap market.Snapshot, out paper.Outcome, mirror bool) error {
	var errs []error
	if err := t.withBroker(context.Background(), t.live.Confirm); err != nil {
		errs = append(errs, err)
	}
	if cur := t.live.State().Current; cur != nil && cur.Status == domain.StatusOpen {
		in := live.ManageInput{
			Snapshot:       snap,
			Style:          t.state.Paper.ExitStyle,
			TargetPct:      t.state.Paper.TargetPct,
			TrailThreshold: t.state.Tuning.TrailingThreshold(cur.Mode),
		}
		err := t.withBroker(context.Background(), func(ctx context.Context) error {
			_, err := t.live.Manage(ctx, in)
			return err
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if mirror && out.Entered != nil {
		req := t.entryRequest(out.Entered, live.TriggerAuto)
		err := t.withBroker(context.Background(), func(ctx context.Context) error {
			_, err := t.live.Enter(ctx, req)
			return err
		})
		switch {
		case errors.Is(err, domain.ErrNotArmed), errors.Is(err, domain.ErrLiveDisabled), errors.Is(err, domain.ErrIllegalTransition):
			logger.Infof("Trader: live entry skipped: %v", err)
		case err != nil:
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Trader) entryRequest(tr *domain.Trade, trigger live.Trigger) live.EntryRequest {
	return live.EntryRequest{
		Instrument: instrumentOf(tr),
		Mode:       tr.Mode,
		Qty:        t.state.Paper.OrderQty,
		Product:    t.state.Paper.ProductType,
		Trigger:    trigger,
		Armed:      t.state.Paper.LiveArmed,
	}
}

func (t *Trader) paperInput() paper.Input {
	return paper.Input{
		History:  t.history.Items(),
		Now:      t.now(),
		Tuning:   t.state.Tuning,
		Signal:   t.signal,
		Exchange: t.exchange,
	}
}

func (t *Trader) recordPaperClose(tr *domain.Trade) {
	if t.ledger == nil || tr == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := t.ledger.Append(ctx, model.FromTrade(model.SourcePaper, *tr)); err != nil {
		logger.Errorf("Trader: ledger append for paper trade %s failed: %v", tr.ID, err)
	}
}
