package live

import (
	"testing"

	"optdesk/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestRemarksRoundTrip(t *testing.T) {
	for _, trig := range []Trigger{TriggerAuto, TriggerForced} {
		for _, mode := range []domain.StrategyMode{domain.ModeNormal, domain.ModeExpiry, domain.ModeBigRally} {
			tag, ok := DecodeRemarks(EntryRemarks(trig, mode))
			assert.True(t, ok, "%s %s", trig, mode)
			assert.Equal(t, Tag{Kind: TagEntry, Trigger: trig, Mode: mode}, tag)
		}
	}
	for _, reason := range domain.KnownExitReasons {
		tag, ok := DecodeRemarks(ExitRemarks(reason))
		assert.True(t, ok, reason)
		assert.Equal(t, Tag{Kind: TagExit, Reason: reason}, tag)
	}
}

func TestDecodeRemarksCaseInsensitivePrefix(t *testing.T) {
	tag, ok := DecodeRemarks(" AUTO_big_rally ")
	assert.True(t, ok)
	assert.Equal(t, TriggerAuto, tag.Trigger)
	assert.Equal(t, domain.ModeBigRally, tag.Mode)
}

func TestDecodeRemarksRejectsForeignTags(t *testing.T) {
	for _, raw := range []string{
		"",
		"auto",
		"auto_",
		"auto_AUTO",
		"forced_SIDEWAYS",
		"exit_",
		"exit_MANUAL_EXIT",
		"hedge_NORMAL",
		"placed from mobile",
	} {
		_, ok := DecodeRemarks(raw)
		assert.False(t, ok, "%q", raw)
	}
}
