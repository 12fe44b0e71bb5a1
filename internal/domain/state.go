package domain

import (
	"fmt"
	"time"
)

const (
	DefaultHistoryLimit = 50
	MinTargetPct        = 20
	MaxTargetPct        = 100
)

// PaperTradeState is the operator configuration plus the simulated position.
// It is owned by the sequencer and replaced, never mutated in place, by the
// decision engine.
type PaperTradeState struct {
	SelectedMode      StrategyMode `json:"selectedMode"`
	EffectiveMode     StrategyMode `json:"effectiveMode"`
	TradeMode         TradeMode    `json:"tradeMode"`
	DirectionOverride Direction    `json:"directionOverride"`
	LiveArmed         bool         `json:"liveArmed"`
	ExitStyle         ExitStyle    `json:"exitStyle"`
	TargetPct         float64      `json:"targetPct"`
	QtyMode           OrderQtyMode `json:"qtyMode"`
	OrderQty          int          `json:"orderQty"`
	Lots              int          `json:"lots"`
	QtyPerLot         int          `json:"qtyPerLot"`
	ProductType       ProductType  `json:"productType"`
	MaxTradesPerDay   int          `json:"maxTradesPerDay"`
	TradesToday       int          `json:"tradesToday"`
	TradingDay        string       `json:"tradingDay"`

	CurrentTrade *Trade    `json:"currentTrade"`
	LastDecision *Decision `json:"lastDecision"`
	History      []Trade   `json:"history"`
	HistoryLimit int       `json:"-"`
}

// DefaultPaperState mirrors a fresh process start.
func DefaultPaperState() PaperTradeState {
	return PaperTradeState{
		SelectedMode:      ModeAuto,
		EffectiveMode:     ModeNormal,
		TradeMode:         TradeModePaper,
		DirectionOverride: DirectionAuto,
		ExitStyle:         ExitTrailing,
		TargetPct:         30,
		QtyMode:           QtyModeLots,
		OrderQty:          75,
		Lots:              1,
		QtyPerLot:         75,
		ProductType:       ProductMIS,
		MaxTradesPerDay:   3,
		HistoryLimit:      DefaultHistoryLimit,
	}
}

func (s PaperTradeState) Clone() PaperTradeState {
	cp := s
	cp.CurrentTrade = s.CurrentTrade.Clone()
	if s.LastDecision != nil {
		d := *s.LastDecision
		d.Reasons = append([]string(nil), s.LastDecision.Reasons...)
		cp.LastDecision = &d
	}
	cp.History = cloneHistory(s.History)
	return cp
}

// AppendHistory records t (by value) and keeps the newest HistoryLimit
// entries. An entry with the same id is replaced rather than duplicated.
func (s *PaperTradeState) AppendHistory(t *Trade) {
	s.History = appendBounded(s.History, t, s.HistoryLimit)
}

// LiveTradeState tracks the real position managed through the broker.
type LiveTradeState struct {
	Current      *Trade    `json:"current"`
	History      []Trade   `json:"history"`
	LastDecision *Decision `json:"lastDecision"`
}

func (s LiveTradeState) Clone() LiveTradeState {
	cp := LiveTradeState{
		Current: s.Current.Clone(),
		History: cloneHistory(s.History),
	}
	if s.LastDecision != nil {
		d := *s.LastDecision
		d.Reasons = append([]string(nil), s.LastDecision.Reasons...)
		cp.LastDecision = &d
	}
	return cp
}

func (s *LiveTradeState) AppendHistory(t *Trade) {
	s.History = appendBounded(s.History, t, DefaultHistoryLimit)
}

// NeedsResync reports whether a recovered state still claims a position.
func (s LiveTradeState) NeedsResync() bool {
	return s.Current.Active()
}

func cloneHistory(in []Trade) []Trade {
	if in == nil {
		return nil
	}
	out := make([]Trade, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}

func appendBounded(hist []Trade, t *Trade, limit int) []Trade {
	if t == nil {
		return hist
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	for i := range hist {
		if hist[i].ID == t.ID {
			hist[i] = *t.Clone()
			return hist
		}
	}
	hist = append(hist, *t.Clone())
	if len(hist) > limit {
		hist = append([]Trade(nil), hist[len(hist)-limit:]...)
	}
	return hist
}

// NormalizeQty validates a quantity setting and returns the single positive
// order quantity it stands for.
func NormalizeQty(mode OrderQtyMode, qty, lots, qtyPerLot int) (int, error) {
	switch mode {
	case QtyModeQty:
		if qty <= 0 {
			return 0, fmt.Errorf("%w: orderQty must be > 0", ErrInvalidInput)
		}
		return qty, nil
	case QtyModeLots:
		if lots <= 0 || qtyPerLot <= 0 {
			return 0, fmt.Errorf("%w: lots and qtyPerLot must be > 0", ErrInvalidInput)
		}
		return lots * qtyPerLot, nil
	default:
		return 0, fmt.Errorf("%w: unknown qty mode %q", ErrInvalidInput, mode)
	}
}

// TradingDayOf returns the calendar day (YYYY-MM-DD) of ts in loc.
func TradingDayOf(ts time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format("2006-01-02")
}
