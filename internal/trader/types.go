package trader

import (
	"encoding/json"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/market"
)

// EventType names a message the actor understands.
type EventType string

const (
	// EvtTick carries a freshly fetched snapshot.
	EvtTick EventType = "TICK"
	// EvtTickFailed reports a poll that produced no snapshot.
	EvtTickFailed EventType = "TICK_FAILED"

	EvtPolling      EventType = "SET_POLLING"
	EvtLogin        EventType = "LOGIN"
	EvtSetMode      EventType = "SET_MODE"
	EvtSetTrade     EventType = "SET_TRADE"
	EvtSetQty       EventType = "SET_QTY"
	EvtSetDirection EventType = "SET_DIRECTION"
	EvtSetArm       EventType = "SET_ARM"
	EvtSetExit      EventType = "SET_EXIT"
	EvtSetTuning    EventType = "SET_TUNING"

	EvtPaperEnter EventType = "PAPER_ENTER"
	EvtPaperExit  EventType = "PAPER_EXIT"
	EvtLiveEnter  EventType = "LIVE_ENTER"
	EvtLiveExit   EventType = "LIVE_EXIT"
	EvtResync     EventType = "RESYNC"
)

// EventEnvelope is the standard message the actor receives.
type EventEnvelope struct {
	ID        string
	Type      EventType
	Payload   json.RawMessage
	CreatedAt time.Time

	// ReplyCh receives the handler result; set by SendSync.
	ReplyCh chan error `json:"-"`
}

type TickPayload struct {
	Snapshot market.Snapshot `json:"snapshot"`
}

type TickFailedPayload struct {
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

type PollingPayload struct {
	Running bool `json:"running"`
}

type LoginPayload struct {
	SecondFactor string `json:"secondFactor,omitempty"`
}

type SetModePayload struct {
	Mode string `json:"mode"`
}

type SetTradePayload struct {
	TradeMode       string `json:"tradeMode"`
	MaxTradesPerDay int    `json:"maxTradesPerDay"`
}

type SetQtyPayload struct {
	QtyMode     string `json:"qtyMode"`
	OrderQty    int    `json:"orderQty"`
	Lots        int    `json:"lots"`
	QtyPerLot   int    `json:"qtyPerLot"`
	ProductType string `json:"productType"`
}

type SetDirectionPayload struct {
	Direction string `json:"direction"`
}

type SetArmPayload struct {
	Armed bool `json:"armed"`
}

type SetExitPayload struct {
	ExitStyle string  `json:"exitStyle"`
	TargetPct float64 `json:"targetPct"`
}

type SetTuningPayload struct {
	Tuning  domain.Tuning `json:"tuning"`
	Version int64         `json:"version"`
}

// ForceEnterPayload optionally pins the direction; empty falls back to the
// override and then the signal.
type ForceEnterPayload struct {
	Direction string `json:"direction,omitempty"`
}

// State is everything the actor owns. Outside the loop it is only visible
// through immutable snapshots.
type State struct {
	Paper         domain.PaperTradeState `json:"paper"`
	Live          domain.LiveTradeState  `json:"live"`
	Latest        *market.Snapshot       `json:"latest,omitempty"`
	HistoryLen    int                    `json:"historyLen"`
	Polling       bool                   `json:"polling"`
	LoggedIn      bool                   `json:"loggedIn"`
	ResyncPending bool                   `json:"resyncPending"`
	LiveEnabled   bool                   `json:"liveEnabled"`
	Tuning        domain.Tuning          `json:"tuning"`
	TuningVersion int64                  `json:"tuningVersion"`
	LastError     string                 `json:"lastError,omitempty"`
	LastErrorAt   *time.Time             `json:"lastErrorAt,omitempty"`
	LastTickAt    *time.Time             `json:"lastTickAt,omitempty"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

func (s *State) clone() *State {
	cp := *s
	cp.Paper = s.Paper.Clone()
	cp.Live = s.Live.Clone()
	if s.Latest != nil {
		latest := *s.Latest
		cp.Latest = &latest
	}
	if s.LastErrorAt != nil {
		ts := *s.LastErrorAt
		cp.LastErrorAt = &ts
	}
	if s.LastTickAt != nil {
		ts := *s.LastTickAt
		cp.LastTickAt = &ts
	}
	return &cp
}

func (s *State) recordError(err error, at time.Time) {
	s.LastError = err.Error()
	ts := at
	s.LastErrorAt = &ts
}
