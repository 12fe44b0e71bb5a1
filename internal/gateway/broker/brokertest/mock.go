// Package brokertest provides a testify mock of broker.Broker.
package brokertest

import (
	"context"
	"time"

	"optdesk/internal/gateway/broker"

	"github.com/stretchr/testify/mock"
)

type MockBroker struct {
	mock.Mock
}

var _ broker.Broker = (*MockBroker)(nil)

func (m *MockBroker) Login(ctx context.Context, secondFactor string) error {
	args := m.Called(ctx, secondFactor)
	return args.Error(0)
}

func (m *MockBroker) OrderBook(ctx context.Context) ([]broker.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]broker.Order)
	return orders, args.Error(1)
}

func (m *MockBroker) TradeBook(ctx context.Context) ([]broker.Fill, error) {
	args := m.Called(ctx)
	fills, _ := args.Get(0).([]broker.Fill)
	return fills, args.Error(1)
}

func (m *MockBroker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockBroker) TimePriceSeries(ctx context.Context, exchange, token string, from, to time.Time, intervalMinutes int) ([]broker.Candle, error) {
	args := m.Called(ctx, exchange, token, from, to, intervalMinutes)
	candles, _ := args.Get(0).([]broker.Candle)
	return candles, args.Error(1)
}
