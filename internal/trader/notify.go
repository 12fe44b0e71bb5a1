package trader

import (
	"context"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/gateway/notifier"
	"optdesk/internal/logger"
)

const notifyTimeout = 20 * time.Second

type liveEvent struct {
	icon  string
	title string
	trade domain.Trade
}

// diffLive lists the operator-visible live transitions between two states.
// History holds open trades too, so a close is detected by status.
func diffLive(prev, next domain.LiveTradeState) []liveEvent {
	var out []liveEvent
	before := make(map[string]domain.TradeStatus, len(prev.History)+1)
	for _, h := range prev.History {
		before[h.ID] = h.Status
	}
	if prev.Current != nil {
		before[prev.Current.ID] = prev.Current.Status
	}

	closedNow := map[string]bool{}
	closed := func(tr domain.Trade) {
		if tr.Status != domain.StatusClosed || closedNow[tr.ID] || before[tr.ID] == domain.StatusClosed {
			return
		}
		closedNow[tr.ID] = true
		out = append(out, liveEvent{icon: "🏁", title: "live trade closed", trade: tr})
	}
	for _, h := range next.History {
		closed(h)
	}
	if next.Current != nil {
		closed(*next.Current)
	}

	p, n := prev.Current, next.Current
	if n.Active() {
		if p == nil || p.ID != n.ID {
			out = append(out, liveEvent{icon: "🟢", title: "live entry placed", trade: *n})
			if n.Status == domain.StatusExiting {
				out = append(out, liveEvent{icon: "🟠", title: "live exit placed", trade: *n})
			}
		} else {
			if !p.EntryConfirmed && n.EntryConfirmed {
				out = append(out, liveEvent{icon: "✅", title: "live entry filled", trade: *n})
			}
			if p.Status == domain.StatusOpen && n.Status == domain.StatusExiting {
				out = append(out, liveEvent{icon: "🟠", title: "live exit placed", trade: *n})
			}
			if p.Status == domain.StatusExiting && n.Status == domain.StatusOpen {
				out = append(out, liveEvent{icon: "⚠️", title: "live exit rejected, trade open again", trade: *n})
			}
		}
	}
	if p.Active() && !closedNow[p.ID] && (n == nil || n.ID != p.ID) {
		out = append(out, liveEvent{icon: "⚠️", title: "live trade dropped", trade: *p})
	}
	return out
}

func (t *Trader) notifyLive(prev, next domain.LiveTradeState) {
	if t.notifier == nil {
		return
	}
	events := diffLive(prev, next)
	if len(events) == 0 {
		return
	}
	at := t.now()
	texts := make([]string, 0, len(events))
	for _, ev := range events {
		texts = append(texts, notifier.TradeMessage(ev.icon, ev.title, ev.trade, at).RenderMarkdown())
	}
	n := t.notifier
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		for _, text := range texts {
			if err := n.SendText(ctx, text); err != nil {
				logger.Warnf("Trader: live notification failed: %v", err)
			}
		}
	}()
}
