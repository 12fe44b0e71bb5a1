// Package paper is the simulated decision engine. Every function here is a
// pure transition: it takes a PaperTradeState value and returns a new one,
// leaving the input untouched.
package paper

import (
	"fmt"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/market"
	"optdesk/internal/selector"
	"optdesk/internal/signal"

	"github.com/google/uuid"
)

// Input is everything a step reads besides the state itself.
type Input struct {
	History  []market.Snapshot
	Now      time.Time
	Tuning   domain.Tuning
	Signal   signal.Provider
	Exchange string
	NewID    func() string
}

// Outcome is the result of one transition.
type Outcome struct {
	State    domain.PaperTradeState
	Decision domain.Decision
	// Entered is set when this step opened a trade.
	Entered *domain.Trade
	// Exited is set when this step closed a trade.
	Exited    *domain.Trade
	Direction domain.Direction
	// LTP of the current trade's leg on the latest snapshot, 0 if unknown.
	LTP float64
}

// Step runs one decision tick.
func Step(state domain.PaperTradeState, in Input) Outcome {
	next := prepare(state, in)
	out := Outcome{State: next}
	mode := next.EffectiveMode

	latest, ok := latestSnapshot(in.History)
	if !ok {
		return out.decide(in.Now, domain.ActionHold, mode, "no snapshot")
	}

	if cur := next.CurrentTrade; cur != nil && cur.Status == domain.StatusOpen {
		ltp := latest.LTP(cur.Strike, cur.OptType)
		out.LTP = ltp
		if ltp <= 0 {
			return out.decide(in.Now, domain.ActionHold, mode, "no quote for "+cur.TradingSymbol)
		}
		cur.Ratchet(ltp)
		reason := domain.EvaluateExit(cur, ltp, next.ExitStyle, next.TargetPct, in.Tuning.TrailingThreshold(cur.Mode))
		if reason == "" {
			next.AppendHistory(cur)
			return out.decide(in.Now, domain.ActionHold, mode,
				fmt.Sprintf("holding %s ltp=%.2f peak=%.2f sl=%.2f", cur.TradingSymbol, ltp, cur.PeakPrice, cur.SLPrice))
		}
		out.closeCurrent(ltp, in.Now, reason)
		return out.decide(in.Now, domain.ActionExit, mode, fmt.Sprintf("%s at %.2f", reason, ltp))
	}

	dir, reasons := resolveDirection(next, in)
	out.Direction = dir
	if dir == domain.DirectionAuto {
		return out.decide(in.Now, domain.ActionHold, mode, append(reasons, "no directional call")...)
	}
	inst, err := selector.Select(latest, mode, dir, in.Tuning)
	if err != nil {
		return out.decide(in.Now, domain.ActionSkip, mode, append(reasons, err.Error())...)
	}
	if next.TradesToday >= next.MaxTradesPerDay {
		return out.decide(in.Now, domain.ActionSkip, mode,
			append(reasons, fmt.Sprintf("%s (%d/%d)", domain.ErrRiskLimit, next.TradesToday, next.MaxTradesPerDay))...)
	}
	if inst.LTP <= 0 {
		return out.decide(in.Now, domain.ActionSkip, mode, append(reasons, "no quote for "+inst.TradingSymbol)...)
	}
	out.open(inst, in)
	return out.decide(in.Now, domain.ActionEnter, mode,
		append(reasons, fmt.Sprintf("%s %s at %.2f", dir, inst.TradingSymbol, inst.LTP))...)
}

// ForceEnter opens a trade regardless of signal and risk gate. dir may be
// AUTO, in which case the override and then the signal are consulted.
func ForceEnter(state domain.PaperTradeState, in Input, dir domain.Direction) (Outcome, error) {
	if state.CurrentTrade.Active() {
		return Outcome{State: state}, fmt.Errorf("%w: paper trade %s already open", domain.ErrIllegalTransition, state.CurrentTrade.ID)
	}
	next := prepare(state, in)
	out := Outcome{State: next}
	latest, ok := latestSnapshot(in.History)
	if !ok {
		return Outcome{State: state}, fmt.Errorf("%w: no snapshot yet", domain.ErrNoQuote)
	}
	reasons := []string{"forced entry"}
	if dir == domain.DirectionAuto {
		var why []string
		dir, why = resolveDirection(next, in)
		reasons = append(reasons, why...)
	}
	if dir == domain.DirectionAuto {
		return Outcome{State: state}, domain.ErrNoDirection
	}
	inst, err := selector.Select(latest, next.EffectiveMode, dir, in.Tuning)
	if err != nil {
		return Outcome{State: state}, err
	}
	if inst.LTP <= 0 {
		return Outcome{State: state}, fmt.Errorf("%w: %s", domain.ErrNoQuote, inst.TradingSymbol)
	}
	out.Direction = dir
	out.open(inst, in)
	return out.decide(in.Now, domain.ActionEnter, next.EffectiveMode,
		append(reasons, fmt.Sprintf("%s %s at %.2f", dir, inst.TradingSymbol, inst.LTP))...), nil
}

// ForceExit closes the current paper trade at the latest quote.
func ForceExit(state domain.PaperTradeState, in Input) (Outcome, error) {
	cur := state.CurrentTrade
	if cur == nil || cur.Status != domain.StatusOpen {
		return Outcome{State: state}, fmt.Errorf("%w: no open paper trade", domain.ErrIllegalTransition)
	}
	latest, ok := latestSnapshot(in.History)
	if !ok {
		return Outcome{State: state}, fmt.Errorf("%w: no snapshot yet", domain.ErrNoQuote)
	}
	ltp := latest.LTP(cur.Strike, cur.OptType)
	if ltp <= 0 {
		return Outcome{State: state}, fmt.Errorf("%w: %s", domain.ErrNoQuote, cur.TradingSymbol)
	}
	next := state.Clone()
	out := Outcome{State: next, LTP: ltp}
	out.State.CurrentTrade.Ratchet(ltp)
	out.closeCurrent(ltp, in.Now, domain.ExitForced)
	return out.decide(in.Now, domain.ActionExit, next.EffectiveMode, fmt.Sprintf("forced exit at %.2f", ltp)), nil
}

// prepare clones state, rolls the trading day and resolves the mode.
func prepare(state domain.PaperTradeState, in Input) domain.PaperTradeState {
	next := state.Clone()
	day := domain.TradingDayOf(in.Now, in.Tuning.Auto.Location())
	if next.TradingDay != day {
		next.TradingDay = day
		next.TradesToday = 0
	}
	next.EffectiveMode = resolveMode(next.SelectedMode, in)
	return next
}

func resolveMode(selected domain.StrategyMode, in Input) domain.StrategyMode {
	if selected.IsConcrete() {
		return selected
	}
	if in.Signal == nil {
		return domain.ModeNormal
	}
	mode, _ := in.Signal.ResolveMode(in.History, in.Tuning)
	if !mode.IsConcrete() {
		return domain.ModeNormal
	}
	return mode
}

func resolveDirection(state domain.PaperTradeState, in Input) (domain.Direction, []string) {
	if state.DirectionOverride == domain.DirectionBull || state.DirectionOverride == domain.DirectionBear {
		return state.DirectionOverride, []string{"direction override " + string(state.DirectionOverride)}
	}
	if in.Signal == nil {
		return domain.DirectionAuto, []string{"no signal provider"}
	}
	return in.Signal.Direction(in.History, in.Tuning)
}

func latestSnapshot(hist []market.Snapshot) (market.Snapshot, bool) {
	if len(hist) == 0 {
		return market.Snapshot{}, false
	}
	return hist[len(hist)-1], true
}

func (o *Outcome) open(inst selector.Instrument, in Input) {
	newID := in.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	mode := o.State.EffectiveMode
	trade := &domain.Trade{
		ID:            newID(),
		Status:        domain.StatusOpen,
		Mode:          mode,
		Strike:        inst.Strike,
		OptType:       inst.OptType,
		TradingSymbol: inst.TradingSymbol,
		Exchange:      in.Exchange,
		Qty:           o.State.OrderQty,
		EntryTs:       in.Now,
		EntryPrice:    inst.LTP,
		PeakPrice:     inst.LTP,
		SLPrice:       domain.StopPrice(inst.LTP, mode),
	}
	o.State.CurrentTrade = trade
	o.State.TradesToday++
	o.State.AppendHistory(trade)
	o.Entered = trade.Clone()
	o.LTP = inst.LTP
}

func (o *Outcome) closeCurrent(ltp float64, now time.Time, reason domain.ExitReason) {
	cur := o.State.CurrentTrade
	cur.Close(ltp, now, reason)
	o.State.AppendHistory(cur)
	o.Exited = cur.Clone()
	o.State.CurrentTrade = nil
}

func (o Outcome) decide(ts time.Time, action string, mode domain.StrategyMode, reasons ...string) Outcome {
	d := domain.Decision{Ts: ts, Action: action, Reasons: reasons, Mode: mode}
	o.Decision = d
	cp := d
	cp.Reasons = append([]string(nil), reasons...)
	o.State.LastDecision = &cp
	return o
}
