package domain

import (
	"fmt"
	"strings"
)

// TradeMode selects whether decisions only simulate or actually execute.
type TradeMode string

const (
	TradeModePaper TradeMode = "PAPER"
	TradeModeLive  TradeMode = "LIVE"
)

// StrategyMode fixes the stop fraction and exit tuning of a trade. AUTO is
// resolved to one concrete mode every tick.
type StrategyMode string

const (
	ModeAuto     StrategyMode = "AUTO"
	ModeNormal   StrategyMode = "NORMAL"
	ModeExpiry   StrategyMode = "EXPIRY"
	ModeBigRally StrategyMode = "BIG_RALLY"
)

// ConcreteModes lists the modes a trade can actually be opened under.
var ConcreteModes = []StrategyMode{ModeNormal, ModeExpiry, ModeBigRally}

func (m StrategyMode) IsConcrete() bool {
	switch m {
	case ModeNormal, ModeExpiry, ModeBigRally:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionAuto Direction = "AUTO"
	DirectionBull Direction = "BULL"
	DirectionBear Direction = "BEAR"
)

type ExitStyle string

const (
	ExitTrailing ExitStyle = "TRAILING"
	ExitTarget   ExitStyle = "TARGET"
)

type OrderQtyMode string

const (
	QtyModeQty  OrderQtyMode = "QTY"
	QtyModeLots OrderQtyMode = "LOTS"
)

type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

type TradeStatus string

const (
	StatusOpen    TradeStatus = "OPEN"
	StatusExiting TradeStatus = "EXITING"
	StatusClosed  TradeStatus = "CLOSED"
)

// ExitReason records why a trade left the OPEN state.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTargetHit    ExitReason = "TARGET"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitForced       ExitReason = "FORCED"
	ExitManual       ExitReason = "MANUAL_EXIT"
)

// KnownExitReasons are the reasons the engine itself tags on exit orders.
// MANUAL_EXIT is derived during resync and never sent to the broker.
var KnownExitReasons = []ExitReason{ExitStopLoss, ExitTargetHit, ExitTrailingStop, ExitForced}

type ProductType string

const (
	ProductMIS  ProductType = "MIS"
	ProductNRML ProductType = "NRML"
)

func ParseTradeMode(raw string) (TradeMode, error) {
	switch TradeMode(normalizeEnum(raw)) {
	case TradeModePaper:
		return TradeModePaper, nil
	case TradeModeLive:
		return TradeModeLive, nil
	}
	return "", invalidEnum("trade mode", raw, TradeModePaper, TradeModeLive)
}

func ParseStrategyMode(raw string) (StrategyMode, error) {
	m := StrategyMode(normalizeEnum(raw))
	switch m {
	case ModeAuto, ModeNormal, ModeExpiry, ModeBigRally:
		return m, nil
	}
	return "", invalidEnum("strategy mode", raw, ModeAuto, ModeNormal, ModeExpiry, ModeBigRally)
}

func ParseDirection(raw string) (Direction, error) {
	d := Direction(normalizeEnum(raw))
	switch d {
	case DirectionAuto, DirectionBull, DirectionBear:
		return d, nil
	}
	return "", invalidEnum("direction", raw, DirectionAuto, DirectionBull, DirectionBear)
}

func ParseExitStyle(raw string) (ExitStyle, error) {
	s := ExitStyle(normalizeEnum(raw))
	switch s {
	case ExitTrailing, ExitTarget:
		return s, nil
	}
	return "", invalidEnum("exit style", raw, ExitTrailing, ExitTarget)
}

func ParseOrderQtyMode(raw string) (OrderQtyMode, error) {
	m := OrderQtyMode(normalizeEnum(raw))
	switch m {
	case QtyModeQty, QtyModeLots:
		return m, nil
	}
	return "", invalidEnum("qty mode", raw, QtyModeQty, QtyModeLots)
}

func ParseProductType(raw string) (ProductType, error) {
	p := ProductType(normalizeEnum(raw))
	switch p {
	case ProductMIS, ProductNRML:
		return p, nil
	}
	return "", invalidEnum("product type", raw, ProductMIS, ProductNRML)
}

func normalizeEnum(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.ReplaceAll(s, "-", "_")
}

func invalidEnum[T ~string](what, raw string, allowed ...T) error {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return fmt.Errorf("%w: %s %q must be one of %s", ErrInvalidInput, what, raw, strings.Join(names, "|"))
}
