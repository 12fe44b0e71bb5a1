package config

import (
	"fmt"
	"net/url"
	"strings"

	"optdesk/internal/domain"
)

// validate runs the per-section checks.
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Poll.validate(); err != nil {
		return err
	}
	if err := c.Snapshot.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.Live.validate(c.Broker); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json")
	}
	return nil
}

func (p *PollConfig) validate() error {
	if p.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be > 0")
	}
	if p.TickTimeoutSeconds <= 0 {
		return fmt.Errorf("poll.tick_timeout_seconds must be > 0")
	}
	if p.HistoryWindowSeconds < p.IntervalSeconds {
		return fmt.Errorf("poll.history_window_seconds must cover at least one interval")
	}
	if p.HistoryMax <= 0 {
		return fmt.Errorf("poll.history_max must be > 0")
	}
	return nil
}

func (s *SnapshotConfig) validate() error {
	raw := strings.TrimSpace(s.URL)
	if raw == "" {
		return fmt.Errorf("snapshot.url cannot be empty")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return fmt.Errorf("snapshot.url is invalid: %w", err)
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	if !b.Enabled {
		return nil
	}
	if strings.TrimSpace(b.BaseURL) == "" {
		return fmt.Errorf("broker.base_url cannot be empty when broker is enabled")
	}
	if strings.TrimSpace(b.UserID) == "" {
		return fmt.Errorf("broker.user_id cannot be empty when broker is enabled")
	}
	if b.RetryAttempts <= 0 {
		return fmt.Errorf("broker.retry_attempts must be > 0")
	}
	if b.RetryMaxMillis < b.RetryBaseMillis {
		return fmt.Errorf("broker.retry_max_millis must be >= broker.retry_base_millis")
	}
	return nil
}

func (l *LiveConfig) validate(broker BrokerConfig) error {
	if l.Enabled && !broker.Enabled {
		return fmt.Errorf("live.enabled requires broker.enabled")
	}
	if strings.TrimSpace(l.RecoveryPath) == "" {
		return fmt.Errorf("live.recovery_path cannot be empty")
	}
	if l.PersistAttempts <= 0 {
		return fmt.Errorf("live.persist_attempts must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	_, err := t.PaperState()
	return err
}

// PaperState converts the trading section into the initial operator state.
func (t TradingConfig) PaperState() (domain.PaperTradeState, error) {
	st := domain.DefaultPaperState()
	mode, err := domain.ParseStrategyMode(t.StrategyMode)
	if err != nil {
		return st, fmt.Errorf("trading.strategy_mode: %w", err)
	}
	qtyMode, err := domain.ParseOrderQtyMode(t.QtyMode)
	if err != nil {
		return st, fmt.Errorf("trading.qty_mode: %w", err)
	}
	product, err := domain.ParseProductType(t.ProductType)
	if err != nil {
		return st, fmt.Errorf("trading.product_type: %w", err)
	}
	style, err := domain.ParseExitStyle(t.ExitStyle)
	if err != nil {
		return st, fmt.Errorf("trading.exit_style: %w", err)
	}
	if t.TargetPct < domain.MinTargetPct || t.TargetPct > domain.MaxTargetPct {
		return st, fmt.Errorf("trading.target_pct must be within [%d,%d]: %w", domain.MinTargetPct, domain.MaxTargetPct, domain.ErrInvalidInput)
	}
	if t.MaxTradesPerDay <= 0 {
		return st, fmt.Errorf("trading.max_trades_per_day must be > 0: %w", domain.ErrInvalidInput)
	}
	qty, err := domain.NormalizeQty(qtyMode, t.OrderQty, t.Lots, t.QtyPerLot)
	if err != nil {
		return st, fmt.Errorf("trading: %w", err)
	}
	st.SelectedMode = mode
	if mode.IsConcrete() {
		st.EffectiveMode = mode
	}
	st.QtyMode = qtyMode
	st.OrderQty = qty
	st.Lots = t.Lots
	st.QtyPerLot = t.QtyPerLot
	st.ProductType = product
	st.ExitStyle = style
	st.TargetPct = t.TargetPct
	st.MaxTradesPerDay = t.MaxTradesPerDay
	if t.HistoryLimit > 0 {
		st.HistoryLimit = t.HistoryLimit
	}
	return st, nil
}
