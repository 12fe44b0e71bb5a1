package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground  = "#060c1b"
	colorTextPrimary = "#eceff4"
	colorTextMuted   = "#9ca3af"
	colorEquity      = "#34d399"
	colorTrade       = "#3b82f6"
)

// RenderChart writes a self-contained HTML page with the cumulative P&L
// line and the per-trade P&L line of rep.
func RenderChart(w io.Writer, rep Report, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	xAxis := make([]string, len(rep.Rows))
	equity := make([]opts.LineData, len(rep.Rows))
	perTrade := make([]opts.LineData, len(rep.Rows))
	for i, r := range rep.Rows {
		xAxis[i] = r.ExitTs.In(loc).Format("01-02 15:04")
		equity[i] = opts.LineData{Value: r.CumulativePnL, Name: r.TradeID}
		perTrade[i] = opts.LineData{Value: r.PnL, Name: r.TradingSymbol}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			PageTitle:       "optdesk P&L",
			Width:           "1200px",
			Height:          "520px",
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Cumulative P&L",
			Subtitle: fmt.Sprintf("%s to %s  trades=%d net=%.2f maxDD=%.2f",
				rep.Query.From.In(loc).Format(time.DateOnly), rep.Query.To.In(loc).Format(time.DateOnly),
				rep.Summary.Trades, rep.Summary.NetPnL, rep.Summary.MaxDrawdown),
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextMuted},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30", TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Color: colorTextMuted}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextMuted},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextMuted, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetXAxis(xAxis).
		AddSeries("cumulative", equity, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2})).
		AddSeries("per trade", perTrade, charts.WithLineStyleOpts(opts.LineStyle{Color: colorTrade, Type: "dashed"}))
	return line.Render(w)
}
