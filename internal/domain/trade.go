package domain

import (
	"fmt"
	"time"
)

// Trade is a single directional options position, paper or live.
type Trade struct {
	ID             string       `json:"id"`
	Status         TradeStatus  `json:"status"`
	Mode           StrategyMode `json:"mode"`
	Strike         float64      `json:"strike"`
	OptType        OptionType   `json:"optType"`
	TradingSymbol  string       `json:"tradingSymbol"`
	Exchange       string       `json:"exchange"`
	Qty            int          `json:"qty"`
	Product        ProductType  `json:"product,omitempty"`
	EntryTs        time.Time    `json:"entryTs"`
	EntryOrderNo   string       `json:"entryOrderNo,omitempty"`
	EntryPrice     float64      `json:"entryPrice"`
	EntryConfirmed bool         `json:"entryConfirmed,omitempty"`
	PeakPrice      float64      `json:"peakPrice"`
	SLPrice        float64      `json:"slPrice"`
	ExitTs         *time.Time   `json:"exitTs,omitempty"`
	ExitPrice      *float64     `json:"exitPrice,omitempty"`
	ExitReason     ExitReason   `json:"exitReason,omitempty"`
	ExitOrderNo    string       `json:"exitOrderNo,omitempty"`
	PnL            *float64     `json:"pnl,omitempty"`
}

// Active reports whether the trade still holds (or is unwinding) a position.
func (t *Trade) Active() bool {
	return t != nil && (t.Status == StatusOpen || t.Status == StatusExiting)
}

// Clone returns a deep copy so callers never share pointer fields.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	cp := *t
	if t.ExitTs != nil {
		ts := *t.ExitTs
		cp.ExitTs = &ts
	}
	if t.ExitPrice != nil {
		px := *t.ExitPrice
		cp.ExitPrice = &px
	}
	if t.PnL != nil {
		pnl := *t.PnL
		cp.PnL = &pnl
	}
	return &cp
}

// Ratchet raises the peak to price; the peak never moves down.
func (t *Trade) Ratchet(price float64) {
	if price > t.PeakPrice {
		t.PeakPrice = price
	}
}

// Close finalizes the trade. exitPrice, exitTs, exitReason and pnl are set
// together so a CLOSED trade is never partially populated.
func (t *Trade) Close(price float64, at time.Time, reason ExitReason) {
	px := price
	ts := at
	pnl := PnL(t.EntryPrice, price, t.Qty)
	t.Status = StatusClosed
	t.ExitPrice = &px
	t.ExitTs = &ts
	t.ExitReason = reason
	t.PnL = &pnl
}

func (t *Trade) String() string {
	if t == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s %s %s %.2f%s qty=%d entry=%.2f sl=%.2f peak=%.2f",
		t.ID, t.Status, t.TradingSymbol, t.Strike, t.OptType, t.Qty, t.EntryPrice, t.SLPrice, t.PeakPrice)
}

// Decision is the observability record of the last engine evaluation.
type Decision struct {
	Ts      time.Time    `json:"ts"`
	Action  string       `json:"action"`
	Reasons []string     `json:"reasons"`
	Mode    StrategyMode `json:"mode"`
}

const (
	ActionHold  = "HOLD"
	ActionEnter = "ENTER"
	ActionExit  = "EXIT"
	ActionSkip  = "SKIP"
)

// EvaluateExit applies the exit rules in priority order to an OPEN trade at
// ltp. The peak must already be ratcheted. It returns "" when no rule fires.
func EvaluateExit(t *Trade, ltp float64, style ExitStyle, targetPct, trailThreshold float64) ExitReason {
	if t == nil || t.Status != StatusOpen || ltp <= 0 {
		return ""
	}
	if t.SLPrice > 0 && priceLTE(ltp, t.SLPrice) {
		return ExitStopLoss
	}
	switch style {
	case ExitTarget:
		if target := TargetPrice(t.EntryPrice, targetPct); target > 0 && priceGTE(ltp, target) {
			return ExitTargetHit
		}
	case ExitTrailing:
		if trailThreshold > 0 && Retracement(t.PeakPrice, ltp) > trailThreshold {
			return ExitTrailingStop
		}
	}
	return ""
}
