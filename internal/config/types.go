package config

import "strings"

// Config is the process configuration of optdesk.
type Config struct {
	App      AppConfig      `toml:"app"`
	Poll     PollConfig     `toml:"poll"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Broker   BrokerConfig   `toml:"broker"`
	Live     LiveConfig     `toml:"live"`
	Trading  TradingConfig  `toml:"trading"`
	Tuning   TuningConfig   `toml:"tuning"`
	Storage  StorageConfig  `toml:"storage"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
}

// PollConfig drives the snapshot poll loop.
type PollConfig struct {
	IntervalSeconds      int  `toml:"interval_seconds"`
	TickTimeoutSeconds   int  `toml:"tick_timeout_seconds"`
	AutoStart            bool `toml:"auto_start"`
	HistoryWindowSeconds int  `toml:"history_window_seconds"`
	HistoryMax           int  `toml:"history_max"`
}

// SnapshotConfig locates the upstream option-chain snapshot builder.
type SnapshotConfig struct {
	URL            string            `toml:"url"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	Headers        map[string]string `toml:"headers"`
}

// BrokerConfig describes access to the Noren-style broker REST API.
type BrokerConfig struct {
	Enabled            bool   `toml:"enabled"`
	BaseURL            string `toml:"base_url"`
	UserID             string `toml:"user_id"`
	Password           string `toml:"password"`
	APIKey             string `toml:"api_key"`
	VendorCode         string `toml:"vendor_code"`
	IMEI               string `toml:"imei"`
	AccountID          string `toml:"account_id"`
	TOTPSecret         string `toml:"totp_secret"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`

	RateLimitPerSecond     float64 `toml:"rate_limit_per_second"`
	RateBurst              int     `toml:"rate_burst"`
	RetryAttempts          int     `toml:"retry_attempts"`
	RetryBaseMillis        int     `toml:"retry_base_millis"`
	RetryMaxMillis         int     `toml:"retry_max_millis"`
	BreakerThreshold       int     `toml:"breaker_threshold"`
	BreakerCooldownSeconds int     `toml:"breaker_cooldown_seconds"`
}

// LiveConfig gates real order placement. Enabled is the process-wide live
// capability flag; the operator still has to arm each session.
type LiveConfig struct {
	Enabled         bool   `toml:"enabled"`
	RecoveryPath    string `toml:"recovery_path"`
	PersistAttempts int    `toml:"persist_attempts"`
	OrderType       string `toml:"order_type"`
}

// TradingConfig seeds the operator settings of a fresh process.
type TradingConfig struct {
	Exchange        string  `toml:"exchange"`
	StrategyMode    string  `toml:"strategy_mode"`
	MaxTradesPerDay int     `toml:"max_trades_per_day"`
	QtyMode         string  `toml:"qty_mode"`
	OrderQty        int     `toml:"order_qty"`
	Lots            int     `toml:"lots"`
	QtyPerLot       int     `toml:"qty_per_lot"`
	ProductType     string  `toml:"product_type"`
	ExitStyle       string  `toml:"exit_style"`
	TargetPct       float64 `toml:"target_pct"`
	HistoryLimit    int     `toml:"history_limit"`
}

// TuningConfig points at the hot-reloadable tunables file.
type TuningConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// NotifyConfig controls operator notifications about live trades.
type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	BaseURL  string `toml:"base_url"`
}

// keySet records which keys were explicitly present in the merged config so
// defaults never override an explicit zero.
type keySet map[string]struct{}

func (k keySet) mark(key string) {
	if k == nil {
		return
	}
	k[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
}

func (k keySet) isSet(key string) bool {
	if k == nil {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
