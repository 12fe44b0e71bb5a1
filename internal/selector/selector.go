// Package selector picks the concrete option contract to trade.
package selector

import (
	"fmt"

	"optdesk/internal/domain"
	"optdesk/internal/market"
)

// Instrument is a tradable option leg chosen from a snapshot.
type Instrument struct {
	Strike        float64
	OptType       domain.OptionType
	TradingSymbol string
	LTP           float64
}

// Select picks the instrument for (mode, direction). BULL walks up the chain
// from ATM into OTM calls, BEAR walks down into OTM puts, by the per-mode
// offset in tuning. The result depends only on its inputs.
func Select(snap market.Snapshot, mode domain.StrategyMode, dir domain.Direction, tuning domain.Tuning) (Instrument, error) {
	if !mode.IsConcrete() {
		return Instrument{}, fmt.Errorf("%w: selector needs a concrete mode, got %q", domain.ErrInvalidInput, mode)
	}
	atm := snap.ATMIndex()
	if atm < 0 {
		return Instrument{}, fmt.Errorf("%w: empty option chain", domain.ErrNoInstrument)
	}
	offset := tuning.StrikeOffset(mode)

	var (
		idx int
		opt domain.OptionType
	)
	switch dir {
	case domain.DirectionBull:
		idx, opt = atm+offset, domain.OptionCall
	case domain.DirectionBear:
		idx, opt = atm-offset, domain.OptionPut
	default:
		return Instrument{}, fmt.Errorf("%w: selector needs BULL or BEAR, got %q", domain.ErrInvalidInput, dir)
	}
	if idx < 0 || idx >= len(snap.Rows) {
		return Instrument{}, fmt.Errorf("%w: offset %d from ATM %.2f leaves the chain", domain.ErrNoInstrument, offset, snap.ATMStrike)
	}
	row := snap.Rows[idx]
	leg := row.Call
	if opt == domain.OptionPut {
		leg = row.Put
	}
	if leg.TradingSymbol == "" {
		return Instrument{}, fmt.Errorf("%w: strike %.2f %s has no trading symbol", domain.ErrNoInstrument, row.Strike, opt)
	}
	return Instrument{
		Strike:        row.Strike,
		OptType:       opt,
		TradingSymbol: leg.TradingSymbol,
		LTP:           leg.LastPrice,
	}, nil
}
