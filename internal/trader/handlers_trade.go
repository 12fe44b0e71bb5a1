package trader

import (
	"context"
	"fmt"
	"strings"

	"optdesk/internal/domain"
	"optdesk/internal/gateway/broker"
	"optdesk/internal/live"
	"optdesk/internal/logger"
	"optdesk/internal/paper"
	"optdesk/internal/selector"
)

func (t *Trader) handlePaperEnter(payload []byte) error {
	dir, err := forcedDirection(payload, EvtPaperEnter)
	if err != nil {
		return err
	}
	out, err := paper.ForceEnter(t.state.Paper, t.paperInput(), dir)
	if err != nil {
		return err
	}
	t.state.Paper = out.State
	logger.Trade("paper forced entry", "trade", out.Entered.ID, "symbol", out.Entered.TradingSymbol, "price", out.Entered.EntryPrice)
	return nil
}

func (t *Trader) handlePaperExit() error {
	out, err := paper.ForceExit(t.state.Paper, t.paperInput())
	if err != nil {
		return err
	}
	t.state.Paper = out.State
	logger.Trade("paper forced exit", "trade", out.Exited.ID, "pnl", *out.Exited.PnL)
	t.recordPaperClose(out.Exited)
	return nil
}

// handleLiveEnter opens a live trade on the instrument the selector picks
// for the current effective mode, regardless of the paper position.
func (t *Trader) handleLiveEnter(payload []byte, traceID string) error {
	dir, err := forcedDirection(payload, EvtLiveEnter)
	if err != nil {
		return err
	}
	if err := t.live.CheckEntry(t.state.Paper.LiveArmed); err != nil {
		return err
	}
	latest, ok := t.history.Latest()
	if !ok {
		return fmt.Errorf("%w: no snapshot yet", domain.ErrNoQuote)
	}
	in := t.paperInput()
	if dir == domain.DirectionAuto {
		dir = t.state.Paper.DirectionOverride
	}
	if dir == domain.DirectionAuto {
		dir, _ = t.signal.Direction(in.History, in.Tuning)
	}
	if dir == domain.DirectionAuto {
		return domain.ErrNoDirection
	}
	mode := t.state.Paper.EffectiveMode
	if !mode.IsConcrete() {
		mode = domain.ModeNormal
	}
	inst, err := selector.Select(latest, mode, dir, in.Tuning)
	if err != nil {
		return err
	}
	if inst.LTP <= 0 {
		return fmt.Errorf("%w: %s", domain.ErrNoQuote, inst.TradingSymbol)
	}
	req := live.EntryRequest{
		Instrument: inst,
		Mode:       mode,
		Qty:        t.state.Paper.OrderQty,
		Product:    t.state.Paper.ProductType,
		Trigger:    live.TriggerForced,
		Armed:      t.state.Paper.LiveArmed,
	}
	logger.Infof("Trader[%s]: forced live entry %s %s", traceID, dir, inst.TradingSymbol)
	return t.withBroker(context.Background(), func(ctx context.Context) error {
		_, err := t.live.Enter(ctx, req)
		return err
	})
}

func (t *Trader) handleLiveExit(traceID string) error {
	if t.state.ResyncPending {
		return fmt.Errorf("%w: recovered trade awaits resync, log in first", domain.ErrIllegalTransition)
	}
	logger.Infof("Trader[%s]: forced live exit", traceID)
	return t.withBroker(context.Background(), func(ctx context.Context) error {
		return t.live.Exit(ctx, domain.ExitForced)
	})
}

func (t *Trader) handleResync(traceID string) error {
	if t.state.ResyncPending && !broker.SessionReady(t.broker) {
		return fmt.Errorf("%w: log in before resync", domain.ErrBrokerUnavailable)
	}
	logger.Infof("Trader[%s]: resync requested", traceID)
	if err := t.withBroker(context.Background(), t.live.Resync); err != nil {
		return err
	}
	t.state.ResyncPending = false
	return nil
}

func forcedDirection(payload []byte, typ EventType) (domain.Direction, error) {
	p, err := decode[ForceEnterPayload](typ, payload)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Direction) == "" {
		return domain.DirectionAuto, nil
	}
	return domain.ParseDirection(p.Direction)
}

func instrumentOf(tr *domain.Trade) selector.Instrument {
	return selector.Instrument{
		Strike:        tr.Strike,
		OptType:       tr.OptType,
		TradingSymbol: tr.TradingSymbol,
		LTP:           tr.EntryPrice,
	}
}
