package market

import (
	"math"
	"time"

	"optdesk/internal/domain"
)

// Quote is the underlying's latest traded state.
type Quote struct {
	LTP           float64 `json:"ltp"`
	VWAP          float64 `json:"vwap"`
	TradingSymbol string  `json:"tradingSymbol"`
	Token         string  `json:"token"`
}

// Leg is one side (call or put) of a strike row.
type Leg struct {
	LastPrice         float64 `json:"lastPrice"`
	OpenInterest      int64   `json:"openInterest"`
	DeltaOpenInterest int64   `json:"deltaOpenInterest"`
	TradingSymbol     string  `json:"tradingSymbol"`
}

type StrikeRow struct {
	Strike float64 `json:"strike"`
	Call   Leg     `json:"call"`
	Put    Leg     `json:"put"`
}

// Suggestion is the precomputed directional call of the upstream scorer.
type Suggestion struct {
	Action     string   `json:"action"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Window     int      `json:"window"`
}

// Snapshot is an immutable option-chain capture. Rows are ordered by strike
// ascending.
type Snapshot struct {
	Ts         time.Time   `json:"ts"`
	Underlying Quote       `json:"underlying"`
	Rows       []StrikeRow `json:"rows"`
	ATMStrike  float64     `json:"atmStrike"`
	Support    float64     `json:"support"`
	Resistance float64     `json:"resistance"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// ATMIndex returns the row index of the ATM strike, or the closest row when
// the exact strike is missing. It returns -1 for an empty chain.
func (s Snapshot) ATMIndex() int {
	best := -1
	bestDist := math.Inf(1)
	for i, row := range s.Rows {
		d := math.Abs(row.Strike - s.ATMStrike)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Leg returns the requested side of the row with strike.
func (s Snapshot) Leg(strike float64, opt domain.OptionType) (Leg, bool) {
	for _, row := range s.Rows {
		if row.Strike != strike {
			continue
		}
		switch opt {
		case domain.OptionCall:
			return row.Call, true
		case domain.OptionPut:
			return row.Put, true
		}
	}
	return Leg{}, false
}

// LTP is the last price of a leg, or 0 when the leg is absent.
func (s Snapshot) LTP(strike float64, opt domain.OptionType) float64 {
	leg, ok := s.Leg(strike, opt)
	if !ok {
		return 0
	}
	return leg.LastPrice
}
