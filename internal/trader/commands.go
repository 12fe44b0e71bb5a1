package trader

import (
	"context"

	"optdesk/internal/domain"
	"optdesk/internal/market"
)

// The methods below are the synchronous control surface. Each one is a
// message to the actor and returns the handler's error.

func (t *Trader) call(ctx context.Context, typ EventType, payload any) error {
	evt, err := newEnvelope(typ, payload)
	if err != nil {
		return err
	}
	return t.SendSync(ctx, evt)
}

func (t *Trader) SetPolling(ctx context.Context, running bool) error {
	return t.call(ctx, EvtPolling, PollingPayload{Running: running})
}

func (t *Trader) Login(ctx context.Context, secondFactor string) error {
	return t.call(ctx, EvtLogin, LoginPayload{SecondFactor: secondFactor})
}

func (t *Trader) SetMode(ctx context.Context, p SetModePayload) error {
	return t.call(ctx, EvtSetMode, p)
}

func (t *Trader) SetTrade(ctx context.Context, p SetTradePayload) error {
	return t.call(ctx, EvtSetTrade, p)
}

func (t *Trader) SetQty(ctx context.Context, p SetQtyPayload) error {
	return t.call(ctx, EvtSetQty, p)
}

func (t *Trader) SetDirection(ctx context.Context, p SetDirectionPayload) error {
	return t.call(ctx, EvtSetDirection, p)
}

func (t *Trader) SetArm(ctx context.Context, p SetArmPayload) error {
	return t.call(ctx, EvtSetArm, p)
}

func (t *Trader) SetExit(ctx context.Context, p SetExitPayload) error {
	return t.call(ctx, EvtSetExit, p)
}

func (t *Trader) SetTuning(ctx context.Context, tuning domain.Tuning, version int64) error {
	return t.call(ctx, EvtSetTuning, SetTuningPayload{Tuning: tuning, Version: version})
}

func (t *Trader) PaperEnter(ctx context.Context, p ForceEnterPayload) error {
	return t.call(ctx, EvtPaperEnter, p)
}

func (t *Trader) PaperExit(ctx context.Context) error {
	return t.call(ctx, EvtPaperExit, nil)
}

func (t *Trader) LiveEnter(ctx context.Context, p ForceEnterPayload) error {
	return t.call(ctx, EvtLiveEnter, p)
}

func (t *Trader) LiveExit(ctx context.Context) error {
	return t.call(ctx, EvtLiveExit, nil)
}

func (t *Trader) Resync(ctx context.Context) error {
	return t.call(ctx, EvtResync, nil)
}

// Tick hands a snapshot to the actor without waiting for the decision.
func (t *Trader) Tick(snap market.Snapshot) error {
	evt, err := newEnvelope(EvtTick, TickPayload{Snapshot: snap})
	if err != nil {
		return err
	}
	return t.Send(evt)
}

// TickFailed records a poll that produced no snapshot.
func (t *Trader) TickFailed(cause error) error {
	evt, err := newEnvelope(EvtTickFailed, TickFailedPayload{Error: cause.Error(), At: t.now()})
	if err != nil {
		return err
	}
	return t.Send(evt)
}
