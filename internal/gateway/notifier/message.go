package notifier

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"optdesk/internal/domain"
)

// telegramLimit keeps a rendered message under Telegram's 4096-character cap
// with room for the closing fence and ellipsis.
const telegramLimit = 3800

const (
	fence       = "```"
	stampLayout = "2006-01-02 15:04:05 MST"
)

// MessageSection is one titled block of a notification.
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage is a notification with a header, sections and footer.
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown lays the message out as header, a fenced block of the
// non-empty sections, then footer and timestamp, separated by blank lines.
func (m StructuredMessage) RenderMarkdown() string {
	var parts []string
	if head := strings.TrimSpace(m.Icon + " " + m.Title); head != "" {
		parts = append(parts, head)
	}
	if body := m.sectionBody(); body != "" {
		parts = append(parts, fence+"\n"+body+"\n"+fence)
	}
	var tail []string
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		tail = append(tail, defuse(footer))
	}
	if !m.Timestamp.IsZero() {
		tail = append(tail, "at "+m.Timestamp.Format(stampLayout))
	}
	if len(tail) > 0 {
		parts = append(parts, strings.Join(tail, "\n"))
	}
	return clip(strings.Join(parts, "\n\n"), telegramLimit)
}

// sectionBody renders each section with content as its title followed by
// "- " bullets; blank lines are dropped and empty sections vanish.
func (m StructuredMessage) sectionBody() string {
	blocks := make([]string, 0, len(m.Sections))
	for _, sec := range m.Sections {
		var rows []string
		for _, line := range sec.Lines {
			if line = strings.TrimSpace(line); line != "" {
				rows = append(rows, "- "+defuse(line))
			}
		}
		if len(rows) == 0 {
			continue
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			rows = append([]string{defuse(title)}, rows...)
		}
		blocks = append(blocks, strings.Join(rows, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// defuse keeps user text from closing the code fence early.
func defuse(s string) string {
	return strings.ReplaceAll(s, fence, "'''")
}

// clip cuts s to at most limit bytes on a rune boundary and re-closes a
// fence the cut left open, so Telegram still parses the Markdown.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	out := s[:cut] + "..."
	if strings.Count(out, fence)%2 == 1 {
		out += "\n" + fence
	}
	return out
}

// TradeMessage summarizes a live trade after a transition.
func TradeMessage(icon, title string, t domain.Trade, at time.Time) StructuredMessage {
	pos := []string{
		fmt.Sprintf("%s %s x%d (%s)", t.TradingSymbol, t.Exchange, t.Qty, t.Mode),
		fmt.Sprintf("entry %.2f order=%s", t.EntryPrice, orDash(t.EntryOrderNo)),
		fmt.Sprintf("sl %.2f peak %.2f", t.SLPrice, t.PeakPrice),
	}
	var exit []string
	if t.ExitOrderNo != "" {
		exit = append(exit, "order="+t.ExitOrderNo)
	}
	if t.ExitPrice != nil {
		exit = append(exit, fmt.Sprintf("price %.2f reason %s", *t.ExitPrice, t.ExitReason))
	}
	if t.PnL != nil {
		exit = append(exit, fmt.Sprintf("pnl %.2f", *t.PnL))
	}
	return StructuredMessage{
		Icon:  icon,
		Title: title,
		Sections: []MessageSection{
			{Title: "position", Lines: pos},
			{Title: "exit", Lines: exit},
		},
		Footer:    "trade " + t.ID,
		Timestamp: at,
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
