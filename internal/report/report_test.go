package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	rows   []model.ClosedTradeModel
	err    error
	source string
	calls  int
}

func (f *fakeLedger) Append(context.Context, *model.ClosedTradeModel) (bool, error) {
	return true, nil
}

func (f *fakeLedger) Range(_ context.Context, from, to time.Time, source string) ([]model.ClosedTradeModel, error) {
	f.calls++
	f.source = source
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ClosedTradeModel
	for _, r := range f.rows {
		if r.ExitTs.Before(from) || !r.ExitTs.Before(to) {
			continue
		}
		if source != "" && r.Source != source {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var day = time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)

func row(id, source, mode, reason string, pnl float64, exitMin int) model.ClosedTradeModel {
	return model.ClosedTradeModel{
		DedupeKey:     source + ":" + id,
		Source:        source,
		TradeID:       id,
		Mode:          mode,
		TradingSymbol: "NIFTY14OCT25C25000",
		Qty:           75,
		PnL:           pnl,
		ExitReason:    reason,
		EntryTs:       day.Add(time.Duration(exitMin-5) * time.Minute),
		ExitTs:        day.Add(time.Duration(exitMin) * time.Minute),
	}
}

func sampleRows() []model.ClosedTradeModel {
	return []model.ClosedTradeModel{
		row("p1", model.SourcePaper, "NORMAL", "TARGET", 1500, 230),
		row("p2", model.SourcePaper, "NORMAL", "SL", -2250, 260),
		row("l1", model.SourceLive, "EXPIRY", "TRAIL", 300.15, 290),
		row("l2", model.SourceLive, "EXPIRY", "SL", -750, 320),
		row("p3", model.SourcePaper, "BIG_RALLY", "TARGET", 3000.1, 350),
	}
}

func TestAggregateSummary(t *testing.T) {
	rep := Aggregate(Query{From: day, To: day.Add(24 * time.Hour)}, sampleRows())
	sum := rep.Summary

	assert.Equal(t, 5, sum.Trades)
	assert.Equal(t, 3, sum.Wins)
	assert.Equal(t, 2, sum.Losses)
	assert.Equal(t, 60.0, sum.WinRate)
	assert.Equal(t, 1800.25, sum.NetPnL)
	assert.Equal(t, 3000.1, sum.BestTrade)
	assert.Equal(t, -2250.0, sum.WorstTrade)
	// peak 1500, trough -1199.85.
	assert.Equal(t, 2699.85, sum.MaxDrawdown)
	assert.Equal(t, map[string]int{"TARGET": 2, "SL": 2, "TRAIL": 1}, sum.ByReason)
	assert.Equal(t, -750.0, sum.PnLByMode["NORMAL"])
	assert.Equal(t, -449.85, sum.PnLByMode["EXPIRY"])
	assert.Equal(t, 3000.1, sum.PnLByMode["BIG_RALLY"])

	require.Len(t, rep.Rows, 5)
	assert.Equal(t, 1500.0, rep.Rows[0].CumulativePnL)
	assert.Equal(t, -750.0, rep.Rows[1].CumulativePnL)
	assert.Equal(t, -449.85, rep.Rows[2].CumulativePnL)
	assert.Equal(t, 1800.25, rep.Rows[4].CumulativePnL)
}

func TestAggregateEmpty(t *testing.T) {
	rep := Aggregate(Query{}, nil)
	assert.Zero(t, rep.Summary.Trades)
	assert.Zero(t, rep.Summary.WinRate)
	assert.Zero(t, rep.Summary.MaxDrawdown)
	assert.NotNil(t, rep.Rows)
	assert.NotNil(t, rep.Summary.ByReason)
}

func TestBuildValidates(t *testing.T) {
	ledger := &fakeLedger{rows: sampleRows()}
	svc := NewService(ledger)
	ctx := context.Background()

	cases := []struct {
		name string
		q    Query
	}{
		{"missing from", Query{To: day}},
		{"missing to", Query{From: day}},
		{"inverted", Query{From: day.Add(time.Hour), To: day}},
		{"equal bounds", Query{From: day, To: day}},
		{"bad source", Query{From: day, To: day.Add(time.Hour), Source: "sim"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Build(ctx, tc.q)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Zero(t, ledger.calls)
}

func TestBuildFiltersBySource(t *testing.T) {
	ledger := &fakeLedger{rows: sampleRows()}
	svc := NewService(ledger)

	rep, err := svc.Build(context.Background(), Query{From: day, To: day.Add(24 * time.Hour), Source: " live "})
	require.NoError(t, err)
	assert.Equal(t, model.SourceLive, ledger.source)
	assert.Equal(t, model.SourceLive, rep.Query.Source)
	assert.Equal(t, 2, rep.Summary.Trades)
	assert.Equal(t, -449.85, rep.Summary.NetPnL)

	// exit at 350 minutes falls outside [0, 350).
	rep, err = svc.Build(context.Background(), Query{From: day, To: day.Add(350 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Summary.Trades)
}

func TestBuildLedgerError(t *testing.T) {
	boom := errors.New("disk gone")
	svc := NewService(&fakeLedger{err: boom})
	_, err := svc.Build(context.Background(), Query{From: day, To: day.Add(time.Hour)})
	require.ErrorIs(t, err, boom)
}

func TestRenderChart(t *testing.T) {
	rep := Aggregate(Query{From: day, To: day.Add(24 * time.Hour)}, sampleRows())
	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, rep, nil))
	html := buf.String()
	assert.Contains(t, html, "Cumulative")
	assert.Contains(t, html, "cumulative")
	assert.Contains(t, html, "10-14 05:50")
}
