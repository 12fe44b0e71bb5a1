package trader

import (
	"context"
	"encoding/json"
	"time"

	"optdesk/internal/logger"
	"optdesk/internal/store/model"

	"gorm.io/datatypes"
)

// shouldJournal selects the operator commands that land in the command
// journal. Ticks are too frequent and carry no operator intent.
func shouldJournal(t EventType) bool {
	switch t {
	case EvtTick, EvtTickFailed:
		return false
	default:
		return true
	}
}

func (t *Trader) recordCommand(evt EventEnvelope, handleErr error, dur time.Duration) {
	if t.journal == nil {
		return
	}
	row := &model.CommandModel{
		ID:        evt.ID,
		Type:      string(evt.Type),
		Payload:   journalPayload(evt),
		TraceID:   evt.ID,
		Duration:  dur.Milliseconds(),
		CreatedAt: evt.CreatedAt,
	}
	if handleErr != nil {
		row.Error = handleErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.journal.Record(ctx, row); err != nil {
		logger.Warnf("Trader: journal %s failed: %v", evt.Type, err)
	}
}

// journalPayload returns the payload to store. Secrets never reach the
// journal.
func journalPayload(evt EventEnvelope) datatypes.JSON {
	switch {
	case evt.Type == EvtLogin:
		return datatypes.JSON(`{"secondFactor":"***"}`)
	case evt.Type == EvtSetTuning:
		var p SetTuningPayload
		if err := json.Unmarshal(evt.Payload, &p); err == nil {
			return datatypes.JSON(mustJSON(map[string]int64{"version": p.Version}))
		}
	case len(evt.Payload) == 0:
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(evt.Payload)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}
