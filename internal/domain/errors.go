package domain

import "errors"

var (
	// ErrInvalidInput marks operator input rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIllegalTransition marks a request the current trade state cannot honor.
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrNoInstrument      = errors.New("no tradable instrument")
	ErrNoQuote           = errors.New("no quote for instrument")
	ErrNoDirection       = errors.New("no directional call")
	ErrRiskLimit         = errors.New("max trades per day reached")

	ErrLiveDisabled      = errors.New("live trading capability disabled")
	ErrNotArmed          = errors.New("live trading not armed")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrPersist           = errors.New("persisting live state failed")
)
