// Package report summarizes the closed-trade ledger over an exit-time range.
package report

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/store"
	"optdesk/internal/store/model"

	"github.com/shopspring/decimal"
)

// Query selects ledger rows with From <= exitTs < To. Source is PAPER, LIVE
// or empty for both.
type Query struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Source string    `json:"source,omitempty"`
}

type Row struct {
	TradeID       string    `json:"tradeId"`
	Source        string    `json:"source"`
	Mode          string    `json:"mode"`
	TradingSymbol string    `json:"tradingSymbol"`
	Qty           int       `json:"qty"`
	EntryPrice    float64   `json:"entryPrice"`
	ExitPrice     float64   `json:"exitPrice"`
	PnL           float64   `json:"pnl"`
	ExitReason    string    `json:"exitReason"`
	EntryTs       time.Time `json:"entryTs"`
	ExitTs        time.Time `json:"exitTs"`
	CumulativePnL float64   `json:"cumulativePnl"`
}

type Summary struct {
	Trades      int                `json:"trades"`
	Wins        int                `json:"wins"`
	Losses      int                `json:"losses"`
	WinRate     float64            `json:"winRate"`
	NetPnL      float64            `json:"netPnl"`
	BestTrade   float64            `json:"bestTrade"`
	WorstTrade  float64            `json:"worstTrade"`
	MaxDrawdown float64            `json:"maxDrawdown"`
	ByReason    map[string]int     `json:"byReason"`
	PnLByMode   map[string]float64 `json:"pnlByMode"`
}

type Report struct {
	Query   Query   `json:"query"`
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// Service builds reports from the ledger.
type Service struct {
	ledger store.LedgerRepository
}

func NewService(ledger store.LedgerRepository) *Service {
	return &Service{ledger: ledger}
}

// Build validates q and aggregates the matching rows oldest first.
func (s *Service) Build(ctx context.Context, q Query) (Report, error) {
	q.Source = strings.ToUpper(strings.TrimSpace(q.Source))
	switch q.Source {
	case "", model.SourcePaper, model.SourceLive:
	default:
		return Report{}, fmt.Errorf("%w: source %q must be PAPER or LIVE", domain.ErrInvalidInput, q.Source)
	}
	if q.From.IsZero() || q.To.IsZero() || !q.From.Before(q.To) {
		return Report{}, fmt.Errorf("%w: report needs from < to", domain.ErrInvalidInput)
	}
	rows, err := s.ledger.Range(ctx, q.From, q.To, q.Source)
	if err != nil {
		return Report{}, fmt.Errorf("query ledger: %w", err)
	}
	return Aggregate(q, rows), nil
}

// Aggregate computes rows and summary. Sums run in decimal so the net P&L
// matches the per-trade figures exactly.
func Aggregate(q Query, rows []model.ClosedTradeModel) Report {
	rep := Report{
		Query: q,
		Rows:  make([]Row, 0, len(rows)),
		Summary: Summary{
			ByReason:  map[string]int{},
			PnLByMode: map[string]float64{},
		},
	}
	sum := &rep.Summary
	var (
		cum    = decimal.Zero
		peak   = decimal.Zero
		maxDD  = decimal.Zero
		byMode = map[string]decimal.Decimal{}
	)
	for i, r := range rows {
		pnl := decimal.NewFromFloat(r.PnL)
		cum = cum.Add(pnl)
		if cum.GreaterThan(peak) {
			peak = cum
		}
		if dd := peak.Sub(cum); dd.GreaterThan(maxDD) {
			maxDD = dd
		}
		byMode[r.Mode] = byMode[r.Mode].Add(pnl)
		sum.ByReason[r.ExitReason]++
		switch {
		case r.PnL > 0:
			sum.Wins++
		case r.PnL < 0:
			sum.Losses++
		}
		if i == 0 || r.PnL > sum.BestTrade {
			sum.BestTrade = r.PnL
		}
		if i == 0 || r.PnL < sum.WorstTrade {
			sum.WorstTrade = r.PnL
		}
		cumF, _ := cum.Float64()
		rep.Rows = append(rep.Rows, Row{
			TradeID:       r.TradeID,
			Source:        r.Source,
			Mode:          r.Mode,
			TradingSymbol: r.TradingSymbol,
			Qty:           r.Qty,
			EntryPrice:    r.EntryPrice,
			ExitPrice:     r.ExitPrice,
			PnL:           r.PnL,
			ExitReason:    r.ExitReason,
			EntryTs:       r.EntryTs,
			ExitTs:        r.ExitTs,
			CumulativePnL: cumF,
		})
	}
	sum.Trades = len(rows)
	if sum.Trades > 0 {
		sum.WinRate = math.Round(float64(sum.Wins)/float64(sum.Trades)*10000) / 100
	}
	sum.NetPnL, _ = cum.Float64()
	sum.MaxDrawdown, _ = maxDD.Float64()
	for mode, v := range byMode {
		sum.PnLByMode[mode], _ = v.Float64()
	}
	return rep
}
