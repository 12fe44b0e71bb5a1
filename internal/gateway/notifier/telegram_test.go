package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"optdesk/internal/domain"
	"optdesk/internal/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegram(url string) *Telegram {
	tg := NewTelegram("token", "42")
	tg.BaseURL = url
	tg.Policy = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return tg
}

func TestTelegramSendsMarkdown(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottoken/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestTelegram(srv.URL).SendText(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestTelegramRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestTelegram(srv.URL).SendText(context.Background(), "x"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestTelegramDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTestTelegram(srv.URL).SendText(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTelegramRequiresCredentials(t *testing.T) {
	assert.Error(t, NewTelegram("", "42").SendText(context.Background(), "x"))
}

func TestTradeMessageRender(t *testing.T) {
	exitPx, pnl := 120.5, 1537.5
	at := time.Date(2025, 10, 14, 10, 0, 0, 0, time.UTC)
	msg := TradeMessage("🏁", "live trade closed", domain.Trade{
		ID:            "LIVE-1001",
		Mode:          domain.ModeNormal,
		TradingSymbol: "NIFTY14OCT25C25000",
		Exchange:      "NFO",
		Qty:           75,
		EntryOrderNo:  "1001",
		EntryPrice:    100,
		SLPrice:       70,
		PeakPrice:     125,
		ExitOrderNo:   "1002",
		ExitPrice:     &exitPx,
		ExitReason:    domain.ExitTrailingStop,
		PnL:           &pnl,
	}, at).RenderMarkdown()

	assert.Contains(t, msg, "🏁 live trade closed")
	assert.Contains(t, msg, "- NIFTY14OCT25C25000 NFO x75 (NORMAL)")
	assert.Contains(t, msg, "- price 120.50 reason TRAILING_STOP")
	assert.Contains(t, msg, "- pnl 1537.50")
	assert.Contains(t, msg, "trade LIVE-1001")
	assert.Contains(t, msg, "at 2025-10-14 10:00:00 UTC")
}

func TestRenderSkipsEmptySections(t *testing.T) {
	msg := StructuredMessage{Title: "empty", Sections: []MessageSection{{Title: "x", Lines: []string{" "}}}}.RenderMarkdown()
	assert.Equal(t, "empty", msg)
}

func TestRenderDefusesFencesInText(t *testing.T) {
	msg := StructuredMessage{
		Title:    "note",
		Sections: []MessageSection{{Title: "why", Lines: []string{"remarks ```sold from app```"}}},
	}.RenderMarkdown()
	assert.Equal(t, "note\n\n```\nwhy\n- remarks '''sold from app'''\n```", msg)
}

func TestRenderClipsLongMessagesWithClosedFence(t *testing.T) {
	lines := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		lines = append(lines, "fill NIFTY14OCT25C25000 ₹101.35")
	}
	msg := StructuredMessage{Title: "fills", Sections: []MessageSection{{Lines: lines}}}.RenderMarkdown()

	assert.LessOrEqual(t, len(msg), telegramLimit+len("...\n```"))
	assert.True(t, strings.HasSuffix(msg, "...\n```"))
	assert.Equal(t, 0, strings.Count(msg, "```")%2)
	assert.True(t, utf8.ValidString(msg))
}
