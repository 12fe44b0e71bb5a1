package trader

import (
	"context"
	"testing"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/gateway/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func liveTrade(id string, status domain.TradeStatus, confirmed bool) *domain.Trade {
	return &domain.Trade{ID: id, Status: status, EntryConfirmed: confirmed, TradingSymbol: "NIFTY14OCT25C25000", Qty: 75, EntryPrice: 100}
}

func titles(events []liveEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.title)
	}
	return out
}

func TestDiffLive(t *testing.T) {
	closed := *liveTrade("LIVE-1", domain.StatusClosed, true)
	cases := []struct {
		name string
		prev domain.LiveTradeState
		next domain.LiveTradeState
		want []string
	}{
		{
			name: "no change",
			prev: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, true)},
			next: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, true)},
			want: []string{},
		},
		{
			name: "entry placed",
			next: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, false)},
			want: []string{"live entry placed"},
		},
		{
			name: "entry filled",
			prev: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, false)},
			next: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, true)},
			want: []string{"live entry filled"},
		},
		{
			name: "exit placed",
			prev: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, true)},
			next: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusExiting, true)},
			want: []string{"live exit placed"},
		},
		{
			name: "exit rejected",
			prev: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusExiting, true)},
			next: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, true)},
			want: []string{"live exit rejected, trade open again"},
		},
		{
			name: "entry placed with history",
			prev: domain.LiveTradeState{History: []domain.Trade{closed}},
			next: domain.LiveTradeState{
				Current: liveTrade("LIVE-2", domain.StatusOpen, false),
				History: []domain.Trade{closed, *liveTrade("LIVE-2", domain.StatusOpen, false)},
			},
			want: []string{"live entry placed"},
		},
		{
			name: "closed",
			prev: domain.LiveTradeState{
				Current: liveTrade("LIVE-1", domain.StatusExiting, true),
				History: []domain.Trade{*liveTrade("LIVE-1", domain.StatusExiting, true)},
			},
			next: domain.LiveTradeState{Current: &closed, History: []domain.Trade{closed}},
			want: []string{"live trade closed"},
		},
		{
			name: "closed by resync",
			prev: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, true)},
			next: domain.LiveTradeState{History: []domain.Trade{closed}},
			want: []string{"live trade closed"},
		},
		{
			name: "dropped",
			prev: domain.LiveTradeState{Current: liveTrade("LIVE-1", domain.StatusOpen, false)},
			next: domain.LiveTradeState{},
			want: []string{"live trade dropped"},
		},
		{
			name: "history already known",
			prev: domain.LiveTradeState{Current: &closed, History: []domain.Trade{closed}},
			next: domain.LiveTradeState{Current: &closed, History: []domain.Trade{closed}},
			want: []string{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, titles(diffLive(tc.prev, tc.next)))
		})
	}
}

type recordingNotifier struct {
	texts chan string
}

func (r *recordingNotifier) SendText(_ context.Context, text string) error {
	r.texts <- text
	return nil
}

func TestLiveEntryIsNotified(t *testing.T) {
	f := newFixture(t, true)
	rec := &recordingNotifier{texts: make(chan string, 4)}
	f.trader.notifier = rec
	f.start(t)
	ctx := context.Background()
	f.broker.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req broker.OrderRequest) bool {
		return req.Side == broker.SideBuy
	})).Return("5001", nil).Once()

	require.NoError(t, f.trader.SetTrade(ctx, SetTradePayload{TradeMode: "LIVE", MaxTradesPerDay: 3}))
	require.NoError(t, f.trader.SetArm(ctx, SetArmPayload{Armed: true}))
	require.NoError(t, f.trader.Tick(chain(t0, 100)))
	f.flush(t)

	select {
	case text := <-rec.texts:
		assert.Contains(t, text, "live entry placed")
		assert.Contains(t, text, "LIVE-5001")
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
	}
}
