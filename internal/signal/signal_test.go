package signal

import (
	"testing"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/market"

	"github.com/stretchr/testify/assert"
)

// 2025-10-14 is a Tuesday.
var tuesday = time.Date(2025, 10, 14, 10, 0, 0, 0, time.UTC)

func series(start time.Time, ltps ...float64) []market.Snapshot {
	out := make([]market.Snapshot, len(ltps))
	for i, v := range ltps {
		out[i] = market.Snapshot{Ts: start.Add(time.Duration(i) * 5 * time.Second), Underlying: market.Quote{LTP: v}}
	}
	return out
}

func TestResolveMode(t *testing.T) {
	tuning := domain.DefaultTuning()
	h := Heuristic{}

	mode, _ := h.ResolveMode(series(tuesday, 25000, 25010, 25005), tuning)
	assert.Equal(t, domain.ModeNormal, mode)

	mode, _ = h.ResolveMode(series(tuesday, 25000, 25100, 25250), tuning)
	assert.Equal(t, domain.ModeBigRally, mode)

	thursday := tuesday.Add(48 * time.Hour)
	mode, reasons := h.ResolveMode(series(thursday, 25000), tuning)
	assert.Equal(t, domain.ModeExpiry, mode)
	assert.Contains(t, reasons[0], "Thursday")
}

func TestDirection_SuggestionWins(t *testing.T) {
	tuning := domain.DefaultTuning()
	hist := series(tuesday, 25000, 25010)
	hist[1].Suggestion = &market.Suggestion{Action: "SELL", Confidence: 72, Reasons: []string{"put writing"}}

	dir, reasons := Heuristic{}.Direction(hist, tuning)
	assert.Equal(t, domain.DirectionBear, dir)
	assert.Contains(t, reasons, "put writing")

	hist[1].Suggestion.Confidence = 40
	dir, _ = Heuristic{}.Direction(hist, tuning)
	assert.Equal(t, domain.DirectionAuto, dir)
}

func TestDirection_EMAFallback(t *testing.T) {
	tuning := domain.DefaultTuning()
	up := make([]float64, 20)
	for i := range up {
		up[i] = 25000 + float64(i*10)
	}
	dir, _ := Heuristic{}.Direction(series(tuesday, up...), tuning)
	assert.Equal(t, domain.DirectionBull, dir)

	down := make([]float64, 20)
	for i := range down {
		down[i] = 25000 - float64(i*10)
	}
	dir, _ = Heuristic{}.Direction(series(tuesday, down...), tuning)
	assert.Equal(t, domain.DirectionBear, dir)

	dir, _ = Heuristic{}.Direction(series(tuesday, 1, 2, 3), tuning)
	assert.Equal(t, domain.DirectionAuto, dir)
}
