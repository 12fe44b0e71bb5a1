package trader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"optdesk/internal/config"
	"optdesk/internal/domain"
	"optdesk/internal/gateway/broker"
	"optdesk/internal/live"
	"optdesk/internal/store/recovery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// norenDesk answers the three calls a resync needs and counts every hit.
type norenDesk struct {
	mu      sync.Mutex
	replies map[string]string
	hits    map[string]int
}

func (d *norenDesk) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	op := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	d.mu.Lock()
	d.hits[op]++
	reply, ok := d.replies[op]
	d.mu.Unlock()
	if !ok {
		reply = `{"stat":"Not_Ok","emsg":"unexpected op"}`
	}
	_, _ = io.WriteString(w, reply)
}

func (d *norenDesk) count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits[op]
}

func TestRecoverWithoutSessionDefersResyncUntilLogin(t *testing.T) {
	desk := &norenDesk{hits: map[string]int{}, replies: map[string]string{
		"QuickAuth": `{"stat":"Ok","susertoken":"tok-1","actid":"FA0001"}`,
		"OrderBook": `[{"stat":"Ok","norenordno":"0999","trantype":"B","status":"COMPLETE","tsym":"NIFTY14OCT25C25000","exch":"NFO","qty":"75","avgprc":"101.50","remarks":"auto_NORMAL","norentm":"09:20:05 14-10-2025"}]`,
		"TradeBook": `[{"norenordno":"0999","tsym":"NIFTY14OCT25C25000","trantype":"B","flqty":"75","flprc":"101.50","fltm":"14-10-2025 09:20:05"}]`,
	}}
	srv := httptest.NewServer(desk)
	t.Cleanup(srv.Close)

	brokerCfg := config.BrokerConfig{
		Enabled: true, BaseURL: srv.URL + "/NorenWClientTP",
		UserID: "FA0001", Password: "pw", APIKey: "key", VendorCode: "FA0001_U", IMEI: "abc",
		RetryAttempts: 1, BreakerThreshold: 3,
	}
	client, err := broker.NewClient(brokerCfg)
	require.NoError(t, err)
	brk := broker.NewResilient(client, brokerCfg)

	file, err := recovery.NewFile(filepath.Join(t.TempDir(), "recovery.json"))
	require.NoError(t, err)
	require.NoError(t, file.Save(domain.LiveTradeState{Current: &domain.Trade{
		ID: "LIVE-0999", Status: domain.StatusOpen, Mode: domain.ModeNormal,
		TradingSymbol: "NIFTY14OCT25C25000", Qty: 75, EntryOrderNo: "0999", EntryPrice: 90, SLPrice: 63,
	}}))

	clock := func() time.Time { return t0 }
	engine := live.NewEngine(brk, file, &memLedger{}, live.Options{
		Enabled: true, Exchange: "NFO", PersistAttempts: 1, Now: clock,
	})
	tr := NewTrader(Options{
		Live: engine, Broker: brk, Ledger: &memLedger{}, Journal: &memJournal{},
		Exchange: "NFO", Paper: domain.DefaultPaperState(), Tuning: domain.DefaultTuning(), Now: clock,
	})
	ctx := context.Background()

	require.NoError(t, tr.Recover(ctx, file))
	st := tr.Snapshot()
	assert.False(t, st.LoggedIn)
	assert.True(t, st.ResyncPending)
	assert.Empty(t, st.LastError)
	require.NotNil(t, st.Live.Current)
	assert.Equal(t, "LIVE-0999", st.Live.Current.ID)
	assert.Equal(t, domain.StatusOpen, st.Live.Current.Status)

	// The on-disk record must survive the unauthenticated start.
	rec, ok, err := file.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, rec.Live.Current)
	assert.Equal(t, "LIVE-0999", rec.Live.Current.ID)
	assert.Equal(t, 0, desk.count("OrderBook"))

	tr.Start()
	t.Cleanup(tr.Stop)

	assert.ErrorIs(t, tr.LiveExit(ctx), domain.ErrIllegalTransition)
	assert.ErrorIs(t, tr.Resync(ctx), domain.ErrBrokerUnavailable)
	require.NoError(t, tr.Tick(chain(t0, 20)))
	require.NoError(t, tr.SetPolling(ctx, tr.Polling()))
	assert.Equal(t, 0, desk.count("OrderBook"))
	assert.Equal(t, 0, desk.count("PlaceOrder"))

	require.NoError(t, tr.Login(ctx, "123456"))
	st = tr.Snapshot()
	assert.True(t, st.LoggedIn)
	assert.False(t, st.ResyncPending)
	assert.Empty(t, st.LastError)
	require.NotNil(t, st.Live.Current)
	assert.Equal(t, "LIVE-0999", st.Live.Current.ID)
	assert.Equal(t, domain.StatusOpen, st.Live.Current.Status)
	assert.True(t, st.Live.Current.EntryConfirmed)
	assert.Equal(t, 101.5, st.Live.Current.EntryPrice)
	assert.Equal(t, 1, desk.count("OrderBook"))

	rec, ok, err = file.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, rec.Live.Current)
	assert.Equal(t, 101.5, rec.Live.Current.EntryPrice)
}
