// Package snapshot fetches option-chain snapshots from the upstream builder
// over HTTP.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"optdesk/internal/config"
	"optdesk/internal/domain"
	"optdesk/internal/market"

	"github.com/tidwall/gjson"
)

const maxBodyBytes = 4 << 20

// HTTPSource polls a JSON endpoint that serves the latest chain. The body is
// either the snapshot object itself or an envelope with it under "data".
type HTTPSource struct {
	url     string
	headers map[string]string
	client  *http.Client
	now     func() time.Time

	mu    sync.Mutex
	stats market.SourceStats
}

var _ market.Source = (*HTTPSource)(nil)

func NewHTTPSource(cfg config.SnapshotConfig) *HTTPSource {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &HTTPSource{
		url:     strings.TrimSpace(cfg.URL),
		headers: headers,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) (market.Snapshot, error) {
	snap, err := s.fetch(ctx)
	s.mu.Lock()
	s.stats.Fetches++
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
	s.mu.Unlock()
	return snap, err
}

func (s *HTTPSource) Stats() market.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSource) fetch(ctx context.Context) (market.Snapshot, error) {
	if s.url == "" {
		return market.Snapshot{}, fmt.Errorf("snapshot: %w: no url configured", domain.ErrInvalidInput)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("snapshot: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("snapshot: fetch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("snapshot: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return market.Snapshot{}, fmt.Errorf("snapshot: upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return Parse(body, s.now())
}

// Parse decodes a snapshot document. fallbackTs stamps documents that carry
// no capture time.
func Parse(body []byte, fallbackTs time.Time) (market.Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return market.Snapshot{}, fmt.Errorf("snapshot: invalid json")
	}
	doc := gjson.ParseBytes(body)
	if data := doc.Get("data"); data.IsObject() {
		doc = data
	}

	snap := market.Snapshot{
		Ts: parseTs(doc.Get("ts"), fallbackTs),
		Underlying: market.Quote{
			LTP:           doc.Get("underlying.ltp").Float(),
			VWAP:          doc.Get("underlying.vwap").Float(),
			TradingSymbol: doc.Get("underlying.tradingSymbol").String(),
			Token:         doc.Get("underlying.token").String(),
		},
		ATMStrike:  doc.Get("atmStrike").Float(),
		Support:    doc.Get("support").Float(),
		Resistance: doc.Get("resistance").Float(),
	}
	for _, row := range doc.Get("rows").Array() {
		snap.Rows = append(snap.Rows, market.StrikeRow{
			Strike: row.Get("strike").Float(),
			Call:   parseLeg(row.Get("call")),
			Put:    parseLeg(row.Get("put")),
		})
	}
	if len(snap.Rows) == 0 {
		return market.Snapshot{}, fmt.Errorf("snapshot: empty option chain")
	}
	sort.SliceStable(snap.Rows, func(i, j int) bool { return snap.Rows[i].Strike < snap.Rows[j].Strike })
	if snap.ATMStrike <= 0 {
		snap.ATMStrike = nearestStrike(snap.Rows, snap.Underlying.LTP)
	}
	if sug := doc.Get("suggestion"); sug.IsObject() {
		s := &market.Suggestion{
			Action:     strings.ToUpper(sug.Get("action").String()),
			Confidence: sug.Get("confidence").Float(),
			Window:     int(sug.Get("window").Int()),
		}
		for _, r := range sug.Get("reasons").Array() {
			s.Reasons = append(s.Reasons, r.String())
		}
		snap.Suggestion = s
	}
	return snap, nil
}

func parseLeg(v gjson.Result) market.Leg {
	ltp := v.Get("lastPrice")
	if !ltp.Exists() {
		ltp = v.Get("ltp")
	}
	return market.Leg{
		LastPrice:         ltp.Float(),
		OpenInterest:      v.Get("openInterest").Int(),
		DeltaOpenInterest: v.Get("deltaOpenInterest").Int(),
		TradingSymbol:     v.Get("tradingSymbol").String(),
	}
}

// parseTs accepts RFC3339 strings and epoch seconds or milliseconds.
func parseTs(v gjson.Result, fallback time.Time) time.Time {
	switch v.Type {
	case gjson.String:
		if ts, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			return ts
		}
	case gjson.Number:
		n := v.Int()
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		if n > 0 {
			return time.Unix(n, 0)
		}
	}
	return fallback
}

func nearestStrike(rows []market.StrikeRow, ltp float64) float64 {
	best, dist := 0.0, -1.0
	for _, r := range rows {
		d := r.Strike - ltp
		if d < 0 {
			d = -d
		}
		if dist < 0 || d < dist {
			best, dist = r.Strike, d
		}
	}
	return best
}
