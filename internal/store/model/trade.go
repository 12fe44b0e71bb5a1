package model

import (
	"optdesk/internal/domain"
)

// DedupeKey returns the ledger key of a closed trade. Live trades are keyed
// by their broker entry order so a reconstructed trade matches the original.
func DedupeKey(source string, t domain.Trade) string {
	if source == SourceLive && t.EntryOrderNo != "" {
		return SourceLive + ":" + t.EntryOrderNo
	}
	return source + ":" + t.ID
}

// FromTrade converts a CLOSED trade into a ledger row.
func FromTrade(source string, t domain.Trade) *ClosedTradeModel {
	row := &ClosedTradeModel{
		DedupeKey:     DedupeKey(source, t),
		Source:        source,
		TradeID:       t.ID,
		Mode:          string(t.Mode),
		TradingSymbol: t.TradingSymbol,
		Exchange:      t.Exchange,
		OptType:       string(t.OptType),
		Strike:        t.Strike,
		Qty:           t.Qty,
		EntryOrderNo:  t.EntryOrderNo,
		ExitOrderNo:   t.ExitOrderNo,
		EntryPrice:    t.EntryPrice,
		PeakPrice:     t.PeakPrice,
		SLPrice:       t.SLPrice,
		ExitReason:    string(t.ExitReason),
		EntryTs:       t.EntryTs,
	}
	if t.ExitPrice != nil {
		row.ExitPrice = *t.ExitPrice
	}
	if t.PnL != nil {
		row.PnL = *t.PnL
	}
	if t.ExitTs != nil {
		row.ExitTs = *t.ExitTs
	}
	return row
}
