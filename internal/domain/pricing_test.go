package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopPrice(t *testing.T) {
	assert.Equal(t, 70.0, StopPrice(100, ModeNormal))
	assert.Equal(t, 75.0, StopPrice(100, ModeExpiry))
	assert.Equal(t, 60.0, StopPrice(100, ModeBigRally))
	assert.Equal(t, 70.0, StopPrice(100, ModeAuto))
	assert.Zero(t, StopPrice(0, ModeNormal))
}

func TestTargetPrice(t *testing.T) {
	assert.Equal(t, 130.0, TargetPrice(100, 30))
	assert.Equal(t, 200.0, TargetPrice(100, 100))
}

func TestPnLAndRetracement(t *testing.T) {
	assert.Equal(t, 2250.0, PnL(100, 130, 75))
	assert.Equal(t, -1500.0, PnL(100, 80, 75))
	// The float product here is 2265.0000000000014.
	assert.Equal(t, 2265.0, PnL(101.35, 131.55, 75))
	assert.Equal(t, 0.25, Retracement(120, 90))
	assert.Zero(t, Retracement(120, 130))
}

func TestEvaluateExit(t *testing.T) {
	open := func() *Trade {
		return &Trade{Status: StatusOpen, EntryPrice: 100, PeakPrice: 100, SLPrice: StopPrice(100, ModeNormal), Qty: 75}
	}

	tr := open()
	assert.Equal(t, ExitStopLoss, EvaluateExit(tr, 70, ExitTrailing, 30, 0.2))
	assert.Equal(t, ExitStopLoss, EvaluateExit(tr, 70, ExitTarget, 30, 0.2))
	assert.Equal(t, ExitTargetHit, EvaluateExit(tr, 130, ExitTarget, 30, 0.2))
	assert.Equal(t, ExitReason(""), EvaluateExit(tr, 130, ExitTrailing, 30, 0.2))

	tr.Ratchet(150)
	tr.Ratchet(120)
	assert.Equal(t, 150.0, tr.PeakPrice)
	assert.Equal(t, ExitReason(""), EvaluateExit(tr, 120, ExitTrailing, 30, 0.2))
	assert.Equal(t, ExitTrailingStop, EvaluateExit(tr, 119, ExitTrailing, 30, 0.2))
	// Target style never trails.
	assert.Equal(t, ExitReason(""), EvaluateExit(tr, 119, ExitTarget, 30, 0.2))

	closed := open()
	closed.Status = StatusClosed
	assert.Equal(t, ExitReason(""), EvaluateExit(closed, 10, ExitTrailing, 30, 0.2))
}

func TestTradeCloseSetsAllExitFields(t *testing.T) {
	tr := &Trade{ID: "x", Status: StatusOpen, EntryPrice: 100, Qty: 50}
	at := time.Date(2025, 10, 14, 6, 0, 0, 0, time.UTC)
	tr.Close(110, at, ExitForced)

	assert.Equal(t, StatusClosed, tr.Status)
	require.NotNil(t, tr.ExitPrice)
	require.NotNil(t, tr.ExitTs)
	require.NotNil(t, tr.PnL)
	assert.Equal(t, 110.0, *tr.ExitPrice)
	assert.Equal(t, at, *tr.ExitTs)
	assert.Equal(t, 500.0, *tr.PnL)
	assert.False(t, tr.Active())

	cp := tr.Clone()
	*cp.PnL = 0
	assert.Equal(t, 500.0, *tr.PnL)
}

func TestNormalizeQty(t *testing.T) {
	q, err := NormalizeQty(QtyModeLots, 0, 2, 75)
	require.NoError(t, err)
	assert.Equal(t, 150, q)

	q, err = NormalizeQty(QtyModeQty, 30, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, q)

	_, err = NormalizeQty(QtyModeQty, 0, 2, 75)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = NormalizeQty(QtyModeLots, 0, 0, 75)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHistoryBoundedAndDeduped(t *testing.T) {
	s := DefaultPaperState()
	s.HistoryLimit = 3
	for _, id := range []string{"a", "b", "c", "d"} {
		s.AppendHistory(&Trade{ID: id})
	}
	require.Len(t, s.History, 3)
	assert.Equal(t, "b", s.History[0].ID)

	s.AppendHistory(&Trade{ID: "c", Status: StatusClosed})
	require.Len(t, s.History, 3)
	assert.Equal(t, StatusClosed, s.History[1].Status)
}

func TestParseEnums(t *testing.T) {
	m, err := ParseStrategyMode("big-rally")
	require.NoError(t, err)
	assert.Equal(t, ModeBigRally, m)

	_, err = ParseTradeMode("REAL")
	assert.ErrorIs(t, err, ErrInvalidInput)

	d, err := ParseDirection(" bear ")
	require.NoError(t, err)
	assert.Equal(t, DirectionBear, d)
}

func TestTuningValidate(t *testing.T) {
	tu := DefaultTuning()
	day, ok := tu.Auto.ExpiryDay()
	require.True(t, ok)
	assert.Equal(t, time.Thursday, day)

	tu.TrailingThresholds[ModeNormal] = 1.5
	assert.ErrorIs(t, tu.Validate(), ErrInvalidInput)

	tu = DefaultTuning()
	tu.Auto.ExpiryWeekday = "someday"
	assert.ErrorIs(t, tu.Validate(), ErrInvalidInput)

	tu = DefaultTuning()
	tu.Signal.FastEMA = 20
	assert.ErrorIs(t, tu.Validate(), ErrInvalidInput)
}
