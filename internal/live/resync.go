package live

import (
	"context"
	"fmt"
	"sort"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/gateway/broker"
	"optdesk/internal/logger"
)

// Resync rebuilds the current live trade from the broker's order and trade
// books. The broker is authoritative: without a matching entry order any
// local position is discarded, and on error the state is left with no
// current trade. Running it twice without new broker activity yields the
// same state.
func (e *Engine) Resync(ctx context.Context) error {
	if e.broker == nil {
		return fmt.Errorf("%w: no broker configured", domain.ErrBrokerUnavailable)
	}
	trade, err := e.reconstruct(ctx)
	if err != nil {
		e.state.Current = nil
		if perr := e.persist(); perr != nil {
			logger.Errorf("resync: %v", perr)
		}
		return fmt.Errorf("resync: %w", err)
	}
	if trade == nil {
		if e.state.Current.Active() {
			logger.Warnf("resync: broker shows no entry for %s, discarding local record", e.state.Current.ID)
		}
		e.state.Current = nil
		return e.persist()
	}
	e.state.Current = trade
	e.state.AppendHistory(trade)
	if trade.Status == domain.StatusClosed {
		e.record(ctx, trade)
	}
	logger.Infof("resync: %s", trade)
	return e.persist()
}

func (e *Engine) reconstruct(ctx context.Context) (*domain.Trade, error) {
	orders, err := e.broker.OrderBook(ctx)
	if err != nil {
		return nil, err
	}
	fills, err := e.broker.TradeBook(ctx)
	if err != nil {
		return nil, err
	}

	entry, tag, ok := latestEntry(orders)
	if !ok {
		return nil, nil
	}
	price, qty, filled := broker.AverageFill(fills, entry.OrderNo)
	if !filled {
		logger.Warnf("resync: entry order %s has no fill, not a position", entry.OrderNo)
		return nil, nil
	}
	entryTs := firstFillTime(fills, entry.OrderNo)
	if entryTs.IsZero() {
		entryTs = entry.Time
	}
	trade := &domain.Trade{
		ID:             tradeID(entry.OrderNo),
		Status:         domain.StatusOpen,
		Mode:           tag.Mode,
		TradingSymbol:  entry.TradingSymbol,
		Exchange:       entry.Exchange,
		Qty:            qty,
		Product:        entry.Product,
		EntryTs:        entryTs,
		EntryOrderNo:   entry.OrderNo,
		EntryPrice:     price,
		EntryConfirmed: true,
		PeakPrice:      price,
		SLPrice:        domain.StopPrice(price, tag.Mode),
	}
	if sym, ok := broker.ParseOptionSymbol(entry.TradingSymbol); ok {
		trade.Strike = sym.Strike
		trade.OptType = sym.OptType
	}
	// The peak is the only thing the books cannot tell; keep the local one
	// for the same position.
	if local := e.state.Current; local != nil && local.ID == trade.ID && local.PeakPrice > trade.PeakPrice {
		trade.PeakPrice = local.PeakPrice
	}

	exit, reason, state := findExit(orders, entry)
	switch state {
	case exitFilled:
		px, _, ok := broker.AverageFill(fills, exit.OrderNo)
		if !ok {
			px = exit.AvgPrice
		}
		at := lastFillTime(fills, exit.OrderNo)
		if at.IsZero() {
			at = exit.Time
		}
		trade.ExitOrderNo = exit.OrderNo
		trade.Ratchet(px)
		trade.Close(px, at, reason)
	case exitPending:
		trade.Status = domain.StatusExiting
		trade.ExitOrderNo = exit.OrderNo
		trade.ExitReason = reason
	}
	return trade, nil
}

// latestEntry returns the most recent completed buy carrying an entry tag.
func latestEntry(orders []broker.Order) (broker.Order, Tag, bool) {
	var (
		best    broker.Order
		bestTag Tag
		found   bool
	)
	for _, o := range orders {
		if o.Side != broker.SideBuy || !o.Completed() {
			continue
		}
		tag, ok := DecodeRemarks(o.Remarks)
		if !ok || tag.Kind != TagEntry {
			continue
		}
		if !found || later(o, best) {
			best, bestTag, found = o, tag, true
		}
	}
	return best, bestTag, found
}

type exitState int

const (
	exitNone exitState = iota
	exitPending
	exitFilled
)

// findExit looks for a sell of the entry's symbol placed at or after the
// entry. A completed sell beats a pending one: an engine-tagged fill first,
// then a foreign fill, which counts as a manual exit. Only when nothing
// filled does a live engine sell mean the exit is in flight.
func findExit(orders []broker.Order, entry broker.Order) (broker.Order, domain.ExitReason, exitState) {
	var candidates []broker.Order
	for _, o := range orders {
		if o.Side != broker.SideSell || o.TradingSymbol != entry.TradingSymbol || o.Dead() {
			continue
		}
		if o.Time.Before(entry.Time) {
			continue
		}
		candidates = append(candidates, o)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return later(candidates[j], candidates[i]) })

	var manual, pending *broker.Order
	var pendingReason domain.ExitReason
	for i := range candidates {
		o := candidates[i]
		tag, ok := DecodeRemarks(o.Remarks)
		tagged := ok && tag.Kind == TagExit
		switch {
		case tagged && o.Completed():
			return o, tag.Reason, exitFilled
		case o.Completed():
			if manual == nil {
				manual = &candidates[i]
			}
		case tagged:
			if pending == nil {
				pending, pendingReason = &candidates[i], tag.Reason
			}
		}
	}
	if manual != nil {
		return *manual, domain.ExitManual, exitFilled
	}
	if pending != nil {
		return *pending, pendingReason, exitPending
	}
	return broker.Order{}, "", exitNone
}

// later orders by time, then by order number for equal timestamps.
func later(a, b broker.Order) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.After(b.Time)
	}
	return a.OrderNo > b.OrderNo
}

func firstFillTime(fills []broker.Fill, orderNo string) time.Time {
	var ts time.Time
	for _, f := range fills {
		if f.OrderNo == orderNo && (ts.IsZero() || f.Time.Before(ts)) {
			ts = f.Time
		}
	}
	return ts
}
