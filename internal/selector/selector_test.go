package selector

import (
	"errors"
	"strconv"
	"testing"

	"optdesk/internal/domain"
	"optdesk/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain() market.Snapshot {
	rows := []market.StrikeRow{}
	for i, strike := range []float64{24900, 24950, 25000, 25050, 25100} {
		rows = append(rows, market.StrikeRow{
			Strike: strike,
			Call:   market.Leg{LastPrice: float64(200 - i*30), TradingSymbol: "NIFTY28OCT25C" + strconv.FormatFloat(strike, 'f', 0, 64)},
			Put:    market.Leg{LastPrice: float64(80 + i*30), TradingSymbol: "NIFTY28OCT25P" + strconv.FormatFloat(strike, 'f', 0, 64)},
		})
	}
	return market.Snapshot{ATMStrike: 25000, Rows: rows}
}

func TestSelect_BullAndBearOffsets(t *testing.T) {
	tuning := domain.DefaultTuning()

	inst, err := Select(chain(), domain.ModeNormal, domain.DirectionBull, tuning)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, inst.Strike)
	assert.Equal(t, domain.OptionCall, inst.OptType)

	inst, err = Select(chain(), domain.ModeExpiry, domain.DirectionBull, tuning)
	require.NoError(t, err)
	assert.Equal(t, 25050.0, inst.Strike)
	assert.Equal(t, "NIFTY28OCT25C25050", inst.TradingSymbol)

	inst, err = Select(chain(), domain.ModeBigRally, domain.DirectionBear, tuning)
	require.NoError(t, err)
	assert.Equal(t, 24950.0, inst.Strike)
	assert.Equal(t, domain.OptionPut, inst.OptType)
}

func TestSelect_IsDeterministic(t *testing.T) {
	tuning := domain.DefaultTuning()
	a, errA := Select(chain(), domain.ModeExpiry, domain.DirectionBear, tuning)
	b, errB := Select(chain(), domain.ModeExpiry, domain.DirectionBear, tuning)
	assert.NoError(t, errA)
	assert.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestSelect_Failures(t *testing.T) {
	tuning := domain.DefaultTuning()
	snap := chain()
	snap.Rows[2].Call.TradingSymbol = ""
	_, err := Select(snap, domain.ModeNormal, domain.DirectionBull, tuning)
	assert.True(t, errors.Is(err, domain.ErrNoInstrument))

	_, err = Select(market.Snapshot{}, domain.ModeNormal, domain.DirectionBull, tuning)
	assert.True(t, errors.Is(err, domain.ErrNoInstrument))

	_, err = Select(chain(), domain.ModeAuto, domain.DirectionBull, tuning)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = Select(chain(), domain.ModeNormal, domain.DirectionAuto, tuning)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	tuning.StrikeOffsets[domain.ModeNormal] = 5
	_, err = Select(chain(), domain.ModeNormal, domain.DirectionBull, tuning)
	assert.True(t, errors.Is(err, domain.ErrNoInstrument))
}
