// Package broker is the order-routing collaborator: a small contract over
// the broker's REST API plus a resilient wrapper used by the live engine.
package broker

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"optdesk/internal/domain"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order status values as reported by the order book.
const (
	StatusComplete = "COMPLETE"
	StatusRejected = "REJECTED"
	StatusCanceled = "CANCELED"
	StatusOpen     = "OPEN"
	StatusPending  = "PENDING"
)

// ErrNotLoggedIn is returned by every call that needs a session before Login.
var ErrNotLoggedIn = errors.New("broker session not established")

// APIError is a request the broker answered with a failure status. It is
// never retried.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return "broker " + e.Op + ": " + e.Message
}

// OrderRequest is a market order as the engine places it.
type OrderRequest struct {
	Side          Side
	Product       domain.ProductType
	Exchange      string
	TradingSymbol string
	Qty           int
	OrderType     string
	Remarks       string
}

// Order is one order-book row.
type Order struct {
	OrderNo       string
	Side          Side
	Status        string
	TradingSymbol string
	Exchange      string
	Product       domain.ProductType
	Qty           int
	AvgPrice      float64
	Remarks       string
	RejectReason  string
	Time          time.Time
}

// Completed reports whether the order was fully executed.
func (o Order) Completed() bool { return strings.EqualFold(o.Status, StatusComplete) }

// Dead reports whether the order will never fill.
func (o Order) Dead() bool {
	return strings.EqualFold(o.Status, StatusRejected) || strings.EqualFold(o.Status, StatusCanceled)
}

// Fill is one trade-book row. An order may fill in several pieces.
type Fill struct {
	OrderNo       string
	TradingSymbol string
	Side          Side
	Qty           int
	Price         float64
	Time          time.Time
}

// Candle is one bar of a time-price series.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Broker is the contract the engine consumes.
type Broker interface {
	Login(ctx context.Context, secondFactor string) error
	OrderBook(ctx context.Context) ([]Order, error)
	TradeBook(ctx context.Context) ([]Fill, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	TimePriceSeries(ctx context.Context, exchange, token string, from, to time.Time, intervalMinutes int) ([]Candle, error)
}

// Session is implemented by brokers that know whether they hold a login.
// Brokers without it are assumed ready.
type Session interface {
	LoggedIn() bool
}

// SessionReady reports whether b can serve authenticated calls.
func SessionReady(b Broker) bool {
	if b == nil {
		return false
	}
	if s, ok := b.(Session); ok {
		return s.LoggedIn()
	}
	return true
}

// AverageFill returns the quantity-weighted fill price of orderNo.
func AverageFill(fills []Fill, orderNo string) (float64, int, bool) {
	var (
		notional float64
		qty      int
	)
	for _, f := range fills {
		if f.OrderNo != orderNo || f.Qty <= 0 {
			continue
		}
		notional += f.Price * float64(f.Qty)
		qty += f.Qty
	}
	if qty == 0 {
		return 0, 0, false
	}
	return notional / float64(qty), qty, true
}

// OptionSymbol is a parsed exchange option trading symbol such as
// NIFTY14OCT25C25000.
type OptionSymbol struct {
	Underlying string
	Expiry     string
	OptType    domain.OptionType
	Strike     float64
}

var optionSymbolRe = regexp.MustCompile(`^(.*?)(\d{2}[A-Z]{3}\d{2})([CP])(\d+(?:\.\d+)?)$`)

// ParseOptionSymbol decodes an option trading symbol.
func ParseOptionSymbol(tsym string) (OptionSymbol, bool) {
	m := optionSymbolRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(tsym)))
	if m == nil || m[1] == "" {
		return OptionSymbol{}, false
	}
	strike, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return OptionSymbol{}, false
	}
	opt := domain.OptionCall
	if m[3] == "P" {
		opt = domain.OptionPut
	}
	return OptionSymbol{Underlying: m[1], Expiry: m[2], OptType: opt, Strike: strike}, true
}
