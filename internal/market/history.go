package market

import (
	"sync"
	"time"
)

// History is the bounded sliding window of snapshots the decision engine
// reads. Snapshots older than window (relative to the newest one) are
// dropped, and at most maxLen are kept.
type History struct {
	mu     sync.RWMutex
	window time.Duration
	maxLen int
	items  []Snapshot
}

func NewHistory(window time.Duration, maxLen int) *History {
	if maxLen <= 0 {
		maxLen = 720
	}
	return &History{window: window, maxLen: maxLen}
}

// Push appends s and evicts stale entries. Out-of-order snapshots (older than
// the newest held) are ignored.
func (h *History) Push(s Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.items); n > 0 && s.Ts.Before(h.items[n-1].Ts) {
		return false
	}
	h.items = append(h.items, s)
	if h.window > 0 {
		cutoff := s.Ts.Add(-h.window)
		drop := 0
		for drop < len(h.items) && h.items[drop].Ts.Before(cutoff) {
			drop++
		}
		h.items = h.items[drop:]
	}
	if len(h.items) > h.maxLen {
		h.items = h.items[len(h.items)-h.maxLen:]
	}
	if cap(h.items) > 4*h.maxLen {
		h.items = append([]Snapshot(nil), h.items...)
	}
	return true
}

// Items returns a copy of the window, oldest first.
func (h *History) Items() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Snapshot, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	return h.items[len(h.items)-1], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
