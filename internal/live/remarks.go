package live

import (
	"strings"

	"optdesk/internal/domain"
)

// Orders placed by the engine carry a remarks tag, the only metadata channel
// the broker offers:
//
//	entry: <trigger>_<MODE>   e.g. forced_NORMAL, auto_BIG_RALLY
//	exit:  exit_<REASON>      e.g. exit_STOP_LOSS, exit_TRAILING_STOP
//
// Anything else is somebody else's order.

// Trigger says who initiated an entry.
type Trigger string

const (
	TriggerAuto   Trigger = "auto"
	TriggerForced Trigger = "forced"
)

const exitPrefix = "exit"

// TagKind distinguishes entry from exit tags.
type TagKind int

const (
	TagEntry TagKind = iota + 1
	TagExit
)

// Tag is a decoded remarks string.
type Tag struct {
	Kind    TagKind
	Trigger Trigger
	Mode    domain.StrategyMode
	Reason  domain.ExitReason
}

func EntryRemarks(trigger Trigger, mode domain.StrategyMode) string {
	return string(trigger) + "_" + string(mode)
}

func ExitRemarks(reason domain.ExitReason) string {
	return exitPrefix + "_" + string(reason)
}

// DecodeRemarks parses a remarks string. ok is false for malformed or
// foreign tags; it never fails otherwise.
func DecodeRemarks(raw string) (tag Tag, ok bool) {
	head, rest, found := strings.Cut(strings.TrimSpace(raw), "_")
	if !found || rest == "" {
		return Tag{}, false
	}
	rest = strings.ToUpper(rest)
	switch strings.ToLower(head) {
	case string(TriggerAuto), string(TriggerForced):
		mode := domain.StrategyMode(rest)
		if !mode.IsConcrete() {
			return Tag{}, false
		}
		return Tag{Kind: TagEntry, Trigger: Trigger(strings.ToLower(head)), Mode: mode}, true
	case exitPrefix:
		reason := domain.ExitReason(rest)
		for _, known := range domain.KnownExitReasons {
			if reason == known {
				return Tag{Kind: TagExit, Reason: reason}, true
			}
		}
	}
	return Tag{}, false
}
