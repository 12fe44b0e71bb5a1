package trader

import (
	"context"
	"fmt"
	"strings"

	"optdesk/internal/domain"
	"optdesk/internal/logger"
)

// Every setter validates the whole payload before touching the state, so a
// rejected command leaves everything as it was.

func (t *Trader) handlePolling(payload []byte) error {
	p, err := decode[PollingPayload](EvtPolling, payload)
	if err != nil {
		return err
	}
	if t.state.Polling != p.Running {
		logger.Infof("Trader: polling %v", map[bool]string{true: "started", false: "stopped"}[p.Running])
	}
	t.state.Polling = p.Running
	return nil
}

func (t *Trader) handleLogin(payload []byte) error {
	p, err := decode[LoginPayload](EvtLogin, payload)
	if err != nil {
		return err
	}
	if t.broker == nil {
		return fmt.Errorf("%w: no broker configured", domain.ErrBrokerUnavailable)
	}
	err = t.withBroker(context.Background(), func(ctx context.Context) error {
		return t.broker.Login(ctx, strings.TrimSpace(p.SecondFactor))
	})
	if err != nil {
		t.state.LoggedIn = false
		return fmt.Errorf("login: %w", err)
	}
	t.state.LoggedIn = true
	logger.Infof("Trader: broker session established")
	t.runPendingResync()
	return nil
}

func (t *Trader) handleSetMode(payload []byte) error {
	p, err := decode[SetModePayload](EvtSetMode, payload)
	if err != nil {
		return err
	}
	mode, err := domain.ParseStrategyMode(p.Mode)
	if err != nil {
		return err
	}
	t.state.Paper.SelectedMode = mode
	if mode.IsConcrete() {
		t.state.Paper.EffectiveMode = mode
	}
	return nil
}

func (t *Trader) handleSetTrade(payload []byte) error {
	p, err := decode[SetTradePayload](EvtSetTrade, payload)
	if err != nil {
		return err
	}
	tm, err := domain.ParseTradeMode(p.TradeMode)
	if err != nil {
		return err
	}
	if p.MaxTradesPerDay <= 0 {
		return fmt.Errorf("%w: maxTradesPerDay must be positive, got %d", domain.ErrInvalidInput, p.MaxTradesPerDay)
	}
	t.state.Paper.TradeMode = tm
	t.state.Paper.MaxTradesPerDay = p.MaxTradesPerDay
	return nil
}

func (t *Trader) handleSetQty(payload []byte) error {
	p, err := decode[SetQtyPayload](EvtSetQty, payload)
	if err != nil {
		return err
	}
	mode, err := domain.ParseOrderQtyMode(p.QtyMode)
	if err != nil {
		return err
	}
	product := t.state.Paper.ProductType
	if strings.TrimSpace(p.ProductType) != "" {
		if product, err = domain.ParseProductType(p.ProductType); err != nil {
			return err
		}
	}
	qty, err := domain.NormalizeQty(mode, p.OrderQty, p.Lots, p.QtyPerLot)
	if err != nil {
		return err
	}
	st := &t.state.Paper
	st.QtyMode = mode
	st.OrderQty = qty
	if mode == domain.QtyModeLots {
		st.Lots = p.Lots
		st.QtyPerLot = p.QtyPerLot
	}
	st.ProductType = product
	return nil
}

func (t *Trader) handleSetDirection(payload []byte) error {
	p, err := decode[SetDirectionPayload](EvtSetDirection, payload)
	if err != nil {
		return err
	}
	dir, err := domain.ParseDirection(p.Direction)
	if err != nil {
		return err
	}
	t.state.Paper.DirectionOverride = dir
	return nil
}

func (t *Trader) handleSetArm(payload []byte) error {
	p, err := decode[SetArmPayload](EvtSetArm, payload)
	if err != nil {
		return err
	}
	if p.Armed && !t.state.LiveEnabled {
		return domain.ErrLiveDisabled
	}
	t.state.Paper.LiveArmed = p.Armed
	logger.Warnf("Trader: live trading armed=%v", p.Armed)
	return nil
}

func (t *Trader) handleSetExit(payload []byte) error {
	p, err := decode[SetExitPayload](EvtSetExit, payload)
	if err != nil {
		return err
	}
	style, err := domain.ParseExitStyle(p.ExitStyle)
	if err != nil {
		return err
	}
	target := t.state.Paper.TargetPct
	if p.TargetPct != 0 {
		if p.TargetPct < domain.MinTargetPct || p.TargetPct > domain.MaxTargetPct {
			return fmt.Errorf("%w: targetPct must be within [%d, %d], got %g",
				domain.ErrInvalidInput, domain.MinTargetPct, domain.MaxTargetPct, p.TargetPct)
		}
		target = p.TargetPct
	}
	t.state.Paper.ExitStyle = style
	t.state.Paper.TargetPct = target
	return nil
}

func (t *Trader) handleSetTuning(payload []byte) error {
	p, err := decode[SetTuningPayload](EvtSetTuning, payload)
	if err != nil {
		return err
	}
	tuning := p.Tuning
	if err := tuning.Validate(); err != nil {
		return err
	}
	t.state.Tuning = tuning
	t.state.TuningVersion = p.Version
	logger.Infof("Trader: tuning v%d applied", p.Version)
	return nil
}
