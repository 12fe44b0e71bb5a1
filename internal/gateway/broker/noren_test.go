package broker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"optdesk/internal/config"
	"optdesk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type norenStub struct {
	mu       sync.Mutex
	bodies   map[string]map[string]any
	keys     map[string]string
	replies  map[string]string
	statuses map[string]int
}

func newNorenStub() *norenStub {
	return &norenStub{
		bodies:   map[string]map[string]any{},
		keys:     map[string]string{},
		replies:  map[string]string{},
		statuses: map[string]int{},
	}
}

func (s *norenStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	raw, _ := io.ReadAll(r.Body)
	body := string(raw)
	jData, jKey := body, ""
	if i := strings.Index(body, "&jKey="); i >= 0 {
		jData, jKey = body[:i], body[i+len("&jKey="):]
	}
	var payload map[string]any
	_ = json.Unmarshal([]byte(strings.TrimPrefix(jData, "jData=")), &payload)

	s.mu.Lock()
	s.bodies[op] = payload
	s.keys[op] = jKey
	reply, ok := s.replies[op]
	status := s.statuses[op]
	s.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
	}
	if !ok {
		reply = `{"stat":"Not_Ok","emsg":"unexpected op"}`
	}
	_, _ = io.WriteString(w, reply)
}

func (s *norenStub) set(op, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[op] = reply
}

func newTestClient(t *testing.T, stub *norenStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.BrokerConfig{
		BaseURL:    srv.URL + "/NorenWClientTP",
		UserID:     "FA0001",
		Password:   "pw",
		APIKey:     "key",
		VendorCode: "FA0001_U",
		IMEI:       "abc",
	})
	require.NoError(t, err)
	return c
}

func login(t *testing.T, stub *norenStub, c *Client) {
	t.Helper()
	stub.set("QuickAuth", `{"stat":"Ok","susertoken":"tok-1","actid":"FA0001"}`)
	require.NoError(t, c.Login(context.Background(), "123456"))
}

func TestLoginHashesCredentials(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	assert.False(t, c.LoggedIn())
	login(t, stub, c)

	assert.True(t, c.LoggedIn())
	body := stub.bodies["QuickAuth"]
	assert.Equal(t, sha256Hex("pw"), body["pwd"])
	assert.Equal(t, sha256Hex("FA0001|key"), body["appkey"])
	assert.Equal(t, "123456", body["factor2"])
	assert.Empty(t, stub.keys["QuickAuth"])
}

func TestLoginRequiresSecondFactor(t *testing.T) {
	c := newTestClient(t, newNorenStub())
	err := c.Login(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoginGeneratesTOTP(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	c.cfg.TOTPSecret = "JBSWY3DPEHPK3PXP"
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	stub.set("QuickAuth", `{"stat":"Ok","susertoken":"tok-1"}`)

	require.NoError(t, c.Login(context.Background(), ""))
	code, _ := stub.bodies["QuickAuth"]["factor2"].(string)
	assert.Len(t, code, 6)
}

func TestLoginRejected(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	stub.set("QuickAuth", `{"stat":"Not_Ok","emsg":"Invalid Input : Wrong Password"}`)

	err := c.Login(context.Background(), "000000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "Wrong Password")
	assert.False(t, c.LoggedIn())
}

func TestCallsNeedSession(t *testing.T) {
	c := newTestClient(t, newNorenStub())
	_, err := c.OrderBook(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestOrderBookParsesRows(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	login(t, stub, c)
	stub.set("OrderBook", `[
		{"stat":"Ok","norenordno":"25101400001","trantype":"B","status":"COMPLETE","tsym":"NIFTY14OCT25C25000","exch":"NFO","qty":"75","avgprc":"101.50","remarks":"auto_NORMAL","norentm":"09:20:05 14-10-2025"},
		{"stat":"Ok","norenordno":"25101400002","trantype":"S","status":"REJECTED","tsym":"NIFTY14OCT25C25000","exch":"NFO","qty":"75","rejreason":"margin","norentm":"09:25:00 14-10-2025"}
	]`)

	orders, err := c.OrderBook(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "tok-1", stub.keys["OrderBook"])

	o := orders[0]
	assert.Equal(t, "25101400001", o.OrderNo)
	assert.Equal(t, SideBuy, o.Side)
	assert.True(t, o.Completed())
	assert.Equal(t, 75, o.Qty)
	assert.Equal(t, 101.5, o.AvgPrice)
	assert.Equal(t, "auto_NORMAL", o.Remarks)
	assert.Equal(t, 9, o.Time.Hour())
	assert.Equal(t, 20, o.Time.Minute())

	assert.Equal(t, SideSell, orders[1].Side)
	assert.True(t, orders[1].Dead())
	assert.Equal(t, "margin", orders[1].RejectReason)
}

func TestEmptyBooksAreNotErrors(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	login(t, stub, c)
	stub.set("OrderBook", `{"stat":"Not_Ok","emsg":"Error Occurred : 5 \"no data\""}`)
	stub.set("TradeBook", `{"stat":"Not_Ok","emsg":"no data"}`)

	orders, err := c.OrderBook(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	fills, err := c.TradeBook(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fills)
}

func TestTradeBookAndAverageFill(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	login(t, stub, c)
	stub.set("TradeBook", `[
		{"norenordno":"1","tsym":"NIFTY14OCT25C25000","trantype":"B","flqty":"50","flprc":"100.00","fltm":"14-10-2025 09:20:05"},
		{"norenordno":"1","tsym":"NIFTY14OCT25C25000","trantype":"B","flqty":"25","flprc":"103.00","fltm":"14-10-2025 09:20:06"}
	]`)

	fills, err := c.TradeBook(context.Background())
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "FA0001", stub.bodies["TradeBook"]["actid"])

	px, qty, ok := AverageFill(fills, "1")
	require.True(t, ok)
	assert.Equal(t, 75, qty)
	assert.InDelta(t, 101.0, px, 1e-9)

	_, _, ok = AverageFill(fills, "2")
	assert.False(t, ok)
}

func TestPlaceOrderPayload(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	login(t, stub, c)
	stub.set("PlaceOrder", `{"stat":"Ok","norenordno":"25101400009"}`)

	no, err := c.PlaceOrder(context.Background(), OrderRequest{
		Side:          SideSell,
		Product:       domain.ProductNRML,
		Exchange:      "NFO",
		TradingSymbol: "NIFTY14OCT25P24900",
		Qty:           150,
		Remarks:       "exit_TARGET",
	})
	require.NoError(t, err)
	assert.Equal(t, "25101400009", no)

	body := stub.bodies["PlaceOrder"]
	assert.Equal(t, "S", body["trantype"])
	assert.Equal(t, "M", body["prd"])
	assert.Equal(t, "150", body["qty"])
	assert.Equal(t, "MKT", body["prctyp"])
	assert.Equal(t, "exit_TARGET", body["remarks"])
}

func TestTimePriceSeriesSorted(t *testing.T) {
	stub := newNorenStub()
	c := newTestClient(t, stub)
	login(t, stub, c)
	stub.set("TPSeries", `[
		{"stat":"Ok","time":"14-10-2025 09:17:00","into":"2","inth":"3","intl":"1","intc":"2.5","intv":"10"},
		{"stat":"Ok","time":"14-10-2025 09:16:00","into":"1","inth":"2","intl":"0.5","intc":"2","intv":"7"}
	]`)
	from := time.Date(2025, 10, 14, 3, 45, 0, 0, time.UTC)
	bars, err := c.TimePriceSeries(context.Background(), "NSE", "26000", from, from.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
	assert.Equal(t, int64(7), bars[0].Volume)
	assert.Equal(t, "1760413500", stub.bodies["TPSeries"]["st"])
}

func TestParseOptionSymbol(t *testing.T) {
	sym, ok := ParseOptionSymbol("NIFTY14OCT25C25000")
	require.True(t, ok)
	assert.Equal(t, "NIFTY", sym.Underlying)
	assert.Equal(t, "14OCT25", sym.Expiry)
	assert.Equal(t, domain.OptionCall, sym.OptType)
	assert.Equal(t, 25000.0, sym.Strike)

	sym, ok = ParseOptionSymbol("BANKNIFTY28OCT25P55500.5")
	require.True(t, ok)
	assert.Equal(t, domain.OptionPut, sym.OptType)
	assert.Equal(t, 55500.5, sym.Strike)

	_, ok = ParseOptionSymbol("RELIANCE-EQ")
	assert.False(t, ok)
}
