package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/gateway/broker"
	"optdesk/internal/gateway/broker/brokertest"
	"optdesk/internal/store/model"
)

// 09:20 IST.
var t0 = time.Date(2025, 10, 14, 3, 50, 0, 0, time.UTC)

const symbol = "NIFTY14OCT25C25000"

type memStore struct {
	mu    sync.Mutex
	saved []domain.LiveTradeState
	err   error
}

func (m *memStore) Save(st domain.LiveTradeState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, st.Clone())
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

type memLedger struct {
	mu   sync.Mutex
	rows map[string]model.ClosedTradeModel
}

func newMemLedger() *memLedger {
	return &memLedger{rows: map[string]model.ClosedTradeModel{}}
}

func (m *memLedger) Append(_ context.Context, row *model.ClosedTradeModel) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[row.DedupeKey]; ok {
		return false, nil
	}
	m.rows[row.DedupeKey] = *row
	return true, nil
}

func (m *memLedger) Range(context.Context, time.Time, time.Time, string) ([]model.ClosedTradeModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ClosedTradeModel, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

type fixture struct {
	engine *Engine
	broker *brokertest.MockBroker
	store  *memStore
	ledger *memLedger
}

func newFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()
	f := &fixture{
		broker: &brokertest.MockBroker{},
		store:  &memStore{},
		ledger: newMemLedger(),
	}
	f.engine = NewEngine(f.broker, f.store, f.ledger, Options{
		Enabled:         enabled,
		Exchange:        "NFO",
		PersistAttempts: 1,
		Now:             func() time.Time { return t0 },
	})
	t.Cleanup(func() { f.broker.AssertExpectations(t) })
	return f
}

func buy(no, remarks, status string, at time.Time) broker.Order {
	return broker.Order{OrderNo: no, Side: broker.SideBuy, Status: status, TradingSymbol: symbol, Exchange: "NFO", Product: domain.ProductMIS, Qty: 75, Remarks: remarks, Time: at}
}

func sell(no, remarks, status string, at time.Time) broker.Order {
	return broker.Order{OrderNo: no, Side: broker.SideSell, Status: status, TradingSymbol: symbol, Exchange: "NFO", Product: domain.ProductMIS, Qty: 75, Remarks: remarks, Time: at}
}

func fill(no string, side broker.Side, px float64, at time.Time) broker.Fill {
	return broker.Fill{OrderNo: no, TradingSymbol: symbol, Side: side, Qty: 75, Price: px, Time: at}
}

var errDown = errors.New("connection refused")
