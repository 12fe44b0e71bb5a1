// Package signal turns a snapshot history into the two calls the decision
// engine delegates: the concrete mode behind AUTO and a trade direction.
package signal

import (
	"fmt"
	"math"
	"strings"

	"optdesk/internal/domain"
	"optdesk/internal/market"

	"github.com/markcheno/go-talib"
)

// Provider is the signal collaborator consumed by the decision engine.
type Provider interface {
	ResolveMode(hist []market.Snapshot, tuning domain.Tuning) (domain.StrategyMode, []string)
	Direction(hist []market.Snapshot, tuning domain.Tuning) (domain.Direction, []string)
}

// Heuristic is the built-in Provider. The upstream scorer's Suggestion wins
// when present; an EMA cross on the underlying is used otherwise.
type Heuristic struct{}

var _ Provider = Heuristic{}

func (Heuristic) ResolveMode(hist []market.Snapshot, tuning domain.Tuning) (domain.StrategyMode, []string) {
	fallback := domain.ModeNormal
	if m, err := domain.ParseStrategyMode(tuning.Auto.DefaultMode); err == nil && m.IsConcrete() {
		fallback = m
	}
	if len(hist) == 0 {
		return fallback, []string{"no snapshots"}
	}
	last := hist[len(hist)-1]
	if day, ok := tuning.Auto.ExpiryDay(); ok {
		if last.Ts.In(tuning.Auto.Location()).Weekday() == day {
			return domain.ModeExpiry, []string{"expiry day " + day.String()}
		}
	}
	if len(hist) < tuning.Auto.MinSnapshots {
		return fallback, []string{fmt.Sprintf("warming up %d/%d", len(hist), tuning.Auto.MinSnapshots)}
	}
	first := hist[0]
	if first.Underlying.LTP > 0 && tuning.Auto.BigRallyPct > 0 {
		move := math.Abs(last.Underlying.LTP-first.Underlying.LTP) / first.Underlying.LTP * 100
		if move >= tuning.Auto.BigRallyPct {
			return domain.ModeBigRally, []string{fmt.Sprintf("underlying moved %.2f%% in window", move)}
		}
	}
	return fallback, []string{"no regime trigger"}
}

func (Heuristic) Direction(hist []market.Snapshot, tuning domain.Tuning) (domain.Direction, []string) {
	if len(hist) == 0 {
		return domain.DirectionAuto, []string{"no snapshots"}
	}
	last := hist[len(hist)-1]
	if sug := last.Suggestion; sug != nil {
		return fromSuggestion(*sug, tuning.Signal.MinConfidence)
	}
	return emaCross(hist, tuning.Signal)
}

func fromSuggestion(sug market.Suggestion, minConfidence float64) (domain.Direction, []string) {
	reasons := append([]string(nil), sug.Reasons...)
	if sug.Confidence < minConfidence {
		return domain.DirectionAuto, append(reasons, fmt.Sprintf("confidence %.0f below %.0f", sug.Confidence, minConfidence))
	}
	switch strings.ToUpper(strings.TrimSpace(sug.Action)) {
	case "BUY", "BULL", "BULLISH", "CALL":
		return domain.DirectionBull, append(reasons, fmt.Sprintf("suggestion %s %.0f%%", sug.Action, sug.Confidence))
	case "SELL", "BEAR", "BEARISH", "PUT":
		return domain.DirectionBear, append(reasons, fmt.Sprintf("suggestion %s %.0f%%", sug.Action, sug.Confidence))
	default:
		return domain.DirectionAuto, append(reasons, "suggestion "+sug.Action)
	}
}

func emaCross(hist []market.Snapshot, cfg domain.SignalTuning) (domain.Direction, []string) {
	if cfg.FastEMA <= 0 || cfg.SlowEMA <= 0 {
		return domain.DirectionAuto, []string{"ema fallback disabled"}
	}
	if len(hist) <= cfg.SlowEMA {
		return domain.DirectionAuto, []string{fmt.Sprintf("ema needs %d snapshots, have %d", cfg.SlowEMA+1, len(hist))}
	}
	closes := make([]float64, len(hist))
	for i, s := range hist {
		closes[i] = s.Underlying.LTP
	}
	fast := talib.Ema(closes, cfg.FastEMA)
	slow := talib.Ema(closes, cfg.SlowEMA)
	f, s := fast[len(fast)-1], slow[len(slow)-1]
	last := hist[len(hist)-1].Underlying
	reason := fmt.Sprintf("ema%d=%.2f ema%d=%.2f ltp=%.2f vwap=%.2f", cfg.FastEMA, f, cfg.SlowEMA, s, last.LTP, last.VWAP)
	switch {
	case f > s && (last.VWAP <= 0 || last.LTP > last.VWAP):
		return domain.DirectionBull, []string{reason}
	case f < s && (last.VWAP <= 0 || last.LTP < last.VWAP):
		return domain.DirectionBear, []string{reason}
	default:
		return domain.DirectionAuto, []string{reason + " (mixed)"}
	}
}
