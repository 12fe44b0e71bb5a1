package broker

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"optdesk/internal/config"
	"optdesk/internal/domain"

	"github.com/pquerna/otp/totp"
	"github.com/tidwall/gjson"
)

const (
	orderTimeLayout = "15:04:05 02-01-2006"
	fillTimeLayout  = "02-01-2006 15:04:05"
	exchangeTZ      = "Asia/Kolkata"
	maxErrorBody    = 4096
)

// Client speaks the Noren REST dialect: every call is a POST whose body is
// jData=<json>[&jKey=<session token>] and whose reply carries stat=Ok|Not_Ok.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	cfg        config.BrokerConfig
	loc        *time.Location
	now        func() time.Time

	mu      sync.RWMutex
	token   string
	account string
}

// NewClient constructs a client from configuration.
func NewClient(cfg config.BrokerConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("broker.base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse broker.base_url: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	loc, err := time.LoadLocation(exchangeTZ)
	if err != nil {
		loc = time.UTC
	}
	account := strings.TrimSpace(cfg.AccountID)
	if account == "" {
		account = strings.TrimSpace(cfg.UserID)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		cfg:        cfg,
		loc:        loc,
		now:        time.Now,
		account:    account,
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// LoggedIn reports whether a session token is held.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Login opens a session. An empty secondFactor is generated from the
// configured TOTP secret when one is set.
func (c *Client) Login(ctx context.Context, secondFactor string) error {
	factor := strings.TrimSpace(secondFactor)
	if factor == "" && c.cfg.TOTPSecret != "" {
		code, err := totp.GenerateCode(c.cfg.TOTPSecret, c.now())
		if err != nil {
			return fmt.Errorf("generate totp: %w", err)
		}
		factor = code
	}
	if factor == "" {
		return fmt.Errorf("%w: second factor required", domain.ErrInvalidInput)
	}
	uid := strings.TrimSpace(c.cfg.UserID)
	payload := map[string]string{
		"source":     "API",
		"apkversion": "1.0.0",
		"uid":        uid,
		"pwd":        sha256Hex(c.cfg.Password),
		"factor2":    factor,
		"vc":         c.cfg.VendorCode,
		"appkey":     sha256Hex(uid + "|" + c.cfg.APIKey),
		"imei":       c.cfg.IMEI,
	}
	res, err := c.post(ctx, "QuickAuth", payload, false)
	if err != nil {
		return err
	}
	token := res.Get("susertoken").String()
	if token == "" {
		return &APIError{Op: "QuickAuth", Message: "no session token in reply"}
	}
	c.mu.Lock()
	c.token = token
	if actid := res.Get("actid").String(); actid != "" {
		c.account = actid
	}
	c.mu.Unlock()
	return nil
}

// OrderBook returns today's orders.
func (c *Client) OrderBook(ctx context.Context) ([]Order, error) {
	res, err := c.post(ctx, "OrderBook", map[string]string{"uid": c.cfg.UserID}, true)
	if isNoData(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Order
	res.ForEach(func(_, row gjson.Result) bool {
		out = append(out, Order{
			OrderNo:       row.Get("norenordno").String(),
			Side:          sideFromCode(row.Get("trantype").String()),
			Status:        strings.ToUpper(row.Get("status").String()),
			TradingSymbol: row.Get("tsym").String(),
			Exchange:      row.Get("exch").String(),
			Product:       productFromCode(row.Get("prd").String()),
			Qty:           int(row.Get("qty").Int()),
			AvgPrice:      row.Get("avgprc").Float(),
			Remarks:       row.Get("remarks").String(),
			RejectReason:  row.Get("rejreason").String(),
			Time:          c.parseTime(orderTimeLayout, row.Get("norentm").String()),
		})
		return true
	})
	return out, nil
}

// TradeBook returns today's fills.
func (c *Client) TradeBook(ctx context.Context) ([]Fill, error) {
	c.mu.RLock()
	account := c.account
	c.mu.RUnlock()
	res, err := c.post(ctx, "TradeBook", map[string]string{"uid": c.cfg.UserID, "actid": account}, true)
	if isNoData(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Fill
	res.ForEach(func(_, row gjson.Result) bool {
		out = append(out, Fill{
			OrderNo:       row.Get("norenordno").String(),
			TradingSymbol: row.Get("tsym").String(),
			Side:          sideFromCode(row.Get("trantype").String()),
			Qty:           int(row.Get("flqty").Int()),
			Price:         row.Get("flprc").Float(),
			Time:          c.parseTime(fillTimeLayout, row.Get("fltm").String()),
		})
		return true
	})
	return out, nil
}

// PlaceOrder submits a market order and returns the broker order number.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	if req.Qty <= 0 || strings.TrimSpace(req.TradingSymbol) == "" {
		return "", fmt.Errorf("%w: order needs a symbol and a positive qty", domain.ErrInvalidInput)
	}
	orderType := req.OrderType
	if orderType == "" {
		orderType = "MKT"
	}
	c.mu.RLock()
	account := c.account
	c.mu.RUnlock()
	payload := map[string]string{
		"ordersource": "API",
		"uid":         c.cfg.UserID,
		"actid":       account,
		"trantype":    sideCode(req.Side),
		"prd":         productCode(req.Product),
		"exch":        req.Exchange,
		"tsym":        req.TradingSymbol,
		"qty":         strconv.Itoa(req.Qty),
		"dscqty":      "0",
		"prctyp":      orderType,
		"prc":         "0",
		"ret":         "DAY",
		"remarks":     req.Remarks,
	}
	res, err := c.post(ctx, "PlaceOrder", payload, true)
	if err != nil {
		return "", err
	}
	orderNo := res.Get("norenordno").String()
	if orderNo == "" {
		return "", &APIError{Op: "PlaceOrder", Message: "no order number in reply"}
	}
	return orderNo, nil
}

// TimePriceSeries returns intraday bars between from and to, oldest first.
func (c *Client) TimePriceSeries(ctx context.Context, exchange, token string, from, to time.Time, intervalMinutes int) ([]Candle, error) {
	if intervalMinutes <= 0 {
		intervalMinutes = 1
	}
	payload := map[string]string{
		"uid":   c.cfg.UserID,
		"exch":  exchange,
		"token": token,
		"st":    strconv.FormatInt(from.Unix(), 10),
		"et":    strconv.FormatInt(to.Unix(), 10),
		"intrv": strconv.Itoa(intervalMinutes),
	}
	res, err := c.post(ctx, "TPSeries", payload, true)
	if isNoData(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Candle
	res.ForEach(func(_, row gjson.Result) bool {
		out = append(out, Candle{
			Time:   c.parseTime(fillTimeLayout, row.Get("time").String()),
			Open:   row.Get("into").Float(),
			High:   row.Get("inth").Float(),
			Low:    row.Get("intl").Float(),
			Close:  row.Get("intc").Float(),
			Volume: row.Get("intv").Int(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (c *Client) post(ctx context.Context, op string, payload map[string]string, authed bool) (gjson.Result, error) {
	var token string
	if authed {
		c.mu.RLock()
		token = c.token
		c.mu.RUnlock()
		if token == "" {
			return gjson.Result{}, ErrNotLoggedIn
		}
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode %s request: %w", op, err)
	}
	body := "jData=" + string(buf)
	if authed {
		body += "&jKey=" + token
	}
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/") + "/" + op
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("call broker %s: %w", op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read broker %s reply: %w", op, err)
	}
	if resp.StatusCode >= 500 {
		return gjson.Result{}, fmt.Errorf("broker %s returned %s", op, resp.Status)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("broker %s returned %s with invalid body: %s", op, resp.Status, truncate(data))
	}
	res := gjson.ParseBytes(data)
	if res.IsObject() && !strings.EqualFold(res.Get("stat").String(), "Ok") {
		msg := res.Get("emsg").String()
		if msg == "" {
			msg = resp.Status
		}
		return gjson.Result{}, &APIError{Op: op, Message: msg}
	}
	if resp.StatusCode >= 300 {
		return gjson.Result{}, &APIError{Op: op, Message: resp.Status}
	}
	return res, nil
}

func (c *Client) parseTime(layout, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.ParseInLocation(layout, raw, c.loc)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func isNoData(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "no data")
}

func sideCode(s Side) string {
	if s == SideSell {
		return "S"
	}
	return "B"
}

func sideFromCode(code string) Side {
	if strings.EqualFold(code, "S") {
		return SideSell
	}
	return SideBuy
}

func productCode(p domain.ProductType) string {
	if p == domain.ProductNRML {
		return "M"
	}
	return "I"
}

func productFromCode(code string) domain.ProductType {
	if strings.EqualFold(code, "M") {
		return domain.ProductNRML
	}
	return domain.ProductMIS
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return strings.TrimSpace(string(b))
}
