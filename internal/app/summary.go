package app

import (
	"fmt"
	"sort"
	"strings"

	"optdesk/internal/config"
	cfgloader "optdesk/internal/config/loader"
	"optdesk/internal/domain"
	"optdesk/internal/trader"
)

type StartupSummary struct {
	Poll     PollSummary
	Trading  TradingSummary
	Live     LiveSummary
	Tuning   TuningSummary
	HTTPAddr string
}

type PollSummary struct {
	Interval  int
	Timeout   int
	AutoStart bool
	Source    string
}

type TradingSummary struct {
	Exchange        string
	SelectedMode    domain.StrategyMode
	TradeMode       domain.TradeMode
	Qty             int
	Product         domain.ProductType
	ExitStyle       domain.ExitStyle
	TargetPct       float64
	MaxTradesPerDay int
}

type LiveSummary struct {
	Enabled      bool
	BrokerReady  bool
	Recovered    string
	RecoveryPath string
	Telegram     bool
}

type TuningSummary struct {
	Path               string
	Version            int64
	Watch              bool
	StrikeOffsets      map[domain.StrategyMode]int
	TrailingThresholds map[domain.StrategyMode]float64
}

func newStartupSummary(cfg *config.Config, tuning cfgloader.TuningSnapshot, st *trader.State, brokerReady bool) *StartupSummary {
	s := &StartupSummary{
		Poll: PollSummary{
			Interval:  cfg.Poll.IntervalSeconds,
			Timeout:   cfg.Poll.TickTimeoutSeconds,
			AutoStart: cfg.Poll.AutoStart,
			Source:    cfg.Snapshot.URL,
		},
		Live: LiveSummary{
			Enabled:      cfg.Live.Enabled,
			BrokerReady:  brokerReady,
			Recovered:    "none",
			RecoveryPath: cfg.Live.RecoveryPath,
			Telegram:     cfg.Notify.Telegram.Enabled,
		},
		Tuning: TuningSummary{
			Path:               cfg.Tuning.Path,
			Version:            tuning.Version,
			Watch:              cfg.Tuning.Watch,
			StrikeOffsets:      tuning.Tuning.StrikeOffsets,
			TrailingThresholds: tuning.Tuning.TrailingThresholds,
		},
		HTTPAddr: cfg.App.HTTPAddr,
	}
	if st != nil {
		p := st.Paper
		s.Trading = TradingSummary{
			Exchange:        cfg.Trading.Exchange,
			SelectedMode:    p.SelectedMode,
			TradeMode:       p.TradeMode,
			Qty:             p.OrderQty,
			Product:         p.ProductType,
			ExitStyle:       p.ExitStyle,
			TargetPct:       p.TargetPct,
			MaxTradesPerDay: p.MaxTradesPerDay,
		}
		if cur := st.Live.Current; cur != nil {
			s.Live.Recovered = fmt.Sprintf("%s %s", cur.Status, cur.TradingSymbol)
		} else if n := len(st.Live.History); n > 0 {
			s.Live.Recovered = fmt.Sprintf("flat, %d closed", n)
		}
	}
	return s
}

// String renders the summary as a block for logger.InfoBlock.
func (s *StartupSummary) String() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	line("%s", strings.Repeat("=", 72))
	line("STARTUP SUMMARY")
	line("%s", strings.Repeat("=", 72))
	line("[poll]")
	line("  source:    %s", s.Poll.Source)
	line("  interval:  %ds (timeout %ds) auto_start=%v", s.Poll.Interval, s.Poll.Timeout, s.Poll.AutoStart)
	line("[trading]")
	line("  exchange:  %s", s.Trading.Exchange)
	line("  mode:      %s / %s", s.Trading.SelectedMode, s.Trading.TradeMode)
	line("  qty:       %d %s", s.Trading.Qty, s.Trading.Product)
	line("  exit:      %s target=%.0f%% max_trades=%d", s.Trading.ExitStyle, s.Trading.TargetPct, s.Trading.MaxTradesPerDay)
	line("[live]")
	line("  enabled:   %v broker=%v telegram=%v", s.Live.Enabled, s.Live.BrokerReady, s.Live.Telegram)
	line("  recovery:  %s (%s)", s.Live.Recovered, s.Live.RecoveryPath)
	line("[tuning]")
	line("  file:      %s v%d watch=%v", s.Tuning.Path, s.Tuning.Version, s.Tuning.Watch)
	line("  offsets:   %s", formatModeMap(s.Tuning.StrikeOffsets, func(v int) string { return fmt.Sprintf("%+d", v) }))
	line("  trailing:  %s", formatModeMap(s.Tuning.TrailingThresholds, func(v float64) string { return fmt.Sprintf("%.2f", v) }))
	line("[http]")
	line("  listen:    %s", s.HTTPAddr)
	line("%s", strings.Repeat("=", 72))
	return b.String()
}

func formatModeMap[V any](m map[domain.StrategyMode]V, format func(V) string) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+format(m[domain.StrategyMode(k)]))
	}
	return strings.Join(parts, ", ")
}
