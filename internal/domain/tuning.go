package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Tuning holds the values that are not fixed by the trading rules and have to
// be confirmed per deployment: strike offsets, trailing thresholds and the
// AUTO mode classifier.
type Tuning struct {
	// StrikeOffsets is the number of strike rows away from ATM (towards OTM)
	// the selector moves for each concrete mode.
	StrikeOffsets map[StrategyMode]int `json:"strikeOffsets" yaml:"strike_offsets"`
	// TrailingThresholds is the retracement from peak, as a fraction, that
	// closes a TRAILING trade.
	TrailingThresholds map[StrategyMode]float64 `json:"trailingThresholds" yaml:"trailing_thresholds"`
	Auto               AutoTuning               `json:"auto" yaml:"auto"`
	Signal             SignalTuning             `json:"signal" yaml:"signal"`
}

// AutoTuning configures the AUTO → concrete mode classifier.
type AutoTuning struct {
	ExpiryWeekday  string  `json:"expiryWeekday" yaml:"expiry_weekday"`
	BigRallyPct    float64 `json:"bigRallyPct" yaml:"big_rally_pct"`
	Timezone       string  `json:"timezone" yaml:"timezone"`
	DefaultMode    string  `json:"defaultMode" yaml:"default_mode"`
	MinSnapshots   int     `json:"minSnapshots" yaml:"min_snapshots"`
	expiryWeekday  time.Weekday
	expiryResolved bool
}

// SignalTuning configures how a direction is derived when no override is set.
type SignalTuning struct {
	MinConfidence float64 `json:"minConfidence" yaml:"min_confidence"`
	FastEMA       int     `json:"fastEma" yaml:"fast_ema"`
	SlowEMA       int     `json:"slowEma" yaml:"slow_ema"`
}

func DefaultTuning() Tuning {
	t := Tuning{
		StrikeOffsets: map[StrategyMode]int{
			ModeNormal:   0,
			ModeExpiry:   1,
			ModeBigRally: 1,
		},
		TrailingThresholds: map[StrategyMode]float64{
			ModeNormal:   0.20,
			ModeExpiry:   0.25,
			ModeBigRally: 0.30,
		},
		Auto: AutoTuning{
			ExpiryWeekday: "Thursday",
			BigRallyPct:   0.8,
			Timezone:      "Asia/Kolkata",
			DefaultMode:   string(ModeNormal),
			MinSnapshots:  3,
		},
		Signal: SignalTuning{
			MinConfidence: 60,
			FastEMA:       5,
			SlowEMA:       13,
		},
	}
	_ = t.Validate()
	return t
}

func (t Tuning) StrikeOffset(mode StrategyMode) int {
	if v, ok := t.StrikeOffsets[mode]; ok {
		return v
	}
	return 0
}

func (t Tuning) TrailingThreshold(mode StrategyMode) float64 {
	if v, ok := t.TrailingThresholds[mode]; ok {
		return v
	}
	return t.TrailingThresholds[ModeNormal]
}

// ExpiryDay is only resolved after Validate.
func (a AutoTuning) ExpiryDay() (time.Weekday, bool) {
	return a.expiryWeekday, a.expiryResolved
}

// Location resolves Timezone, falling back to UTC.
func (a AutoTuning) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks ranges and resolves derived fields.
func (t *Tuning) Validate() error {
	for mode, off := range t.StrikeOffsets {
		if !mode.IsConcrete() {
			return fmt.Errorf("%w: strike_offsets has non-concrete mode %q", ErrInvalidInput, mode)
		}
		if off < 0 || off > 10 {
			return fmt.Errorf("%w: strike offset for %s must be within [0,10]", ErrInvalidInput, mode)
		}
	}
	for mode, th := range t.TrailingThresholds {
		if !mode.IsConcrete() {
			return fmt.Errorf("%w: trailing_thresholds has non-concrete mode %q", ErrInvalidInput, mode)
		}
		if th <= 0 || th >= 1 {
			return fmt.Errorf("%w: trailing threshold for %s must be within (0,1)", ErrInvalidInput, mode)
		}
	}
	if t.Auto.BigRallyPct < 0 {
		return fmt.Errorf("%w: auto.big_rally_pct must be >= 0", ErrInvalidInput)
	}
	if t.Auto.DefaultMode != "" {
		m, err := ParseStrategyMode(t.Auto.DefaultMode)
		if err != nil || !m.IsConcrete() {
			return fmt.Errorf("%w: auto.default_mode must be a concrete mode", ErrInvalidInput)
		}
	}
	t.Auto.expiryResolved = false
	if t.Auto.ExpiryWeekday != "" {
		day, ok := parseWeekday(t.Auto.ExpiryWeekday)
		if !ok {
			return fmt.Errorf("%w: auto.expiry_weekday %q", ErrInvalidInput, t.Auto.ExpiryWeekday)
		}
		t.Auto.expiryWeekday = day
		t.Auto.expiryResolved = true
	}
	if t.Auto.Timezone != "" {
		if _, err := time.LoadLocation(t.Auto.Timezone); err != nil {
			return fmt.Errorf("%w: auto.timezone: %v", ErrInvalidInput, err)
		}
	}
	if t.Signal.MinConfidence < 0 || t.Signal.MinConfidence > 100 {
		return fmt.Errorf("%w: signal.min_confidence must be within [0,100]", ErrInvalidInput)
	}
	if t.Signal.FastEMA < 0 || t.Signal.SlowEMA < 0 || (t.Signal.FastEMA > 0 && t.Signal.SlowEMA > 0 && t.Signal.FastEMA >= t.Signal.SlowEMA) {
		return fmt.Errorf("%w: signal.fast_ema must be below signal.slow_ema", ErrInvalidInput)
	}
	return nil
}

func parseWeekday(raw string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := d.String()
		if len(raw) >= 3 && (strings.EqualFold(raw, name) || strings.EqualFold(raw, name[:3])) {
			return d, true
		}
	}
	return 0, false
}
