package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// stopFractions is the share of the entry price retained at the stop.
var stopFractions = map[StrategyMode]float64{
	ModeExpiry:   0.75,
	ModeNormal:   0.70,
	ModeBigRally: 0.60,
}

// StopFraction returns the fixed stop fraction of a concrete mode. AUTO and
// unknown modes fall back to NORMAL.
func StopFraction(mode StrategyMode) float64 {
	if f, ok := stopFractions[mode]; ok {
		return f
	}
	return stopFractions[ModeNormal]
}

func decFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func decToFloat(v decimal.Decimal) float64 {
	f, _ := v.Float64()
	return f
}

// StopPrice is entry × stop fraction of the mode.
func StopPrice(entry float64, mode StrategyMode) float64 {
	if entry <= 0 {
		return 0
	}
	return decToFloat(decFromFloat(entry).Mul(decFromFloat(StopFraction(mode))))
}

// TargetPrice is entry × (1 + pct/100).
func TargetPrice(entry, pct float64) float64 {
	if entry <= 0 {
		return 0
	}
	factor := decOne.Add(decFromFloat(pct).Div(decHundred))
	return decToFloat(decFromFloat(entry).Mul(factor))
}

// PnL is (exit − entry) × qty, computed in decimal so paise-priced legs
// give the exact rupee figure rather than the float product.
func PnL(entry, exit float64, qty int) float64 {
	return decToFloat(decFromFloat(exit).Sub(decFromFloat(entry)).Mul(decimal.NewFromInt(int64(qty))))
}

// Retracement is the fractional drop of price below peak; zero when price is
// at or above the peak.
func Retracement(peak, price float64) float64 {
	if peak <= 0 || price >= peak {
		return 0
	}
	p := decFromFloat(peak)
	return decToFloat(p.Sub(decFromFloat(price)).Div(p))
}

func priceLTE(a, b float64) bool { return decFromFloat(a).Cmp(decFromFloat(b)) <= 0 }
func priceGTE(a, b float64) bool { return decFromFloat(a).Cmp(decFromFloat(b)) >= 0 }
