package market

import (
	"testing"
	"time"

	"optdesk/internal/domain"

	"github.com/stretchr/testify/assert"
)

func snapAt(ts time.Time, ltp float64) Snapshot {
	return Snapshot{Ts: ts, Underlying: Quote{LTP: ltp}}
}

func TestHistory_EvictsOutsideWindow(t *testing.T) {
	h := NewHistory(10*time.Second, 100)
	base := time.Date(2025, 10, 16, 9, 15, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Push(snapAt(base.Add(time.Duration(i)*5*time.Second), float64(100+i)))
	}
	items := h.Items()
	assert.Len(t, items, 3)
	assert.Equal(t, 102.0, items[0].Underlying.LTP)
	latest, ok := h.Latest()
	assert.True(t, ok)
	assert.Equal(t, 104.0, latest.Underlying.LTP)
}

func TestHistory_CapsLengthAndRejectsStale(t *testing.T) {
	h := NewHistory(0, 2)
	base := time.Now()
	assert.True(t, h.Push(snapAt(base, 1)))
	assert.True(t, h.Push(snapAt(base.Add(time.Second), 2)))
	assert.True(t, h.Push(snapAt(base.Add(2*time.Second), 3)))
	assert.False(t, h.Push(snapAt(base, 0)))
	assert.Equal(t, 2, h.Len())
}

func TestSnapshot_ATMIndexAndLegs(t *testing.T) {
	s := Snapshot{
		ATMStrike: 25010,
		Rows: []StrikeRow{
			{Strike: 24950, Call: Leg{LastPrice: 120, TradingSymbol: "C24950"}},
			{Strike: 25000, Call: Leg{LastPrice: 90, TradingSymbol: "C25000"}, Put: Leg{LastPrice: 80}},
			{Strike: 25050, Call: Leg{LastPrice: 60}},
		},
	}
	assert.Equal(t, 1, s.ATMIndex())
	assert.Equal(t, 80.0, s.LTP(25000, domain.OptionPut))
	assert.Equal(t, 0.0, s.LTP(26000, domain.OptionCall))
	assert.Equal(t, -1, Snapshot{}.ATMIndex())
}
