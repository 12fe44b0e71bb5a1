package config

import (
	"strings"
)

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":9991"
	defaultAppLogPath        = "/data/logs/optdesk.log"
	defaultPollInterval      = 5
	defaultPollTickTimeout   = 4
	defaultHistoryWindow     = 300
	defaultHistoryMax        = 120
	defaultSnapshotTimeout   = 3
	defaultBrokerTimeout     = 10
	defaultBrokerRate        = 5
	defaultBrokerBurst       = 5
	defaultBrokerRetries     = 3
	defaultBrokerRetryBaseMs = 200
	defaultBrokerRetryMaxMs  = 2000
	defaultBreakerThreshold  = 5
	defaultBreakerCooldown   = 30
	defaultLiveRecoveryPath  = "/data/live/recovery.json"
	defaultLivePersistTries  = 3
	defaultLiveOrderType     = "MKT"
	defaultExchange          = "NFO"
	defaultStrategyMode      = "AUTO"
	defaultMaxTradesPerDay   = 3
	defaultQtyMode           = "LOTS"
	defaultLots              = 1
	defaultQtyPerLot         = 75
	defaultProductType       = "MIS"
	defaultExitStyle         = "TRAILING"
	defaultTargetPct         = 30
	defaultHistoryLimit      = 50
	defaultTuningPath        = "configs/tuning.yaml"
	defaultDBPath            = "/data/db/optdesk.db"
	defaultTelegramBaseURL   = "https://api.telegram.org"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Poll.applyDefaults(keys)
	c.Snapshot.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.Live.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Tuning.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (p *PollConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("poll.interval_seconds", &p.IntervalSeconds, defaultPollInterval),
		intFieldDefault("poll.tick_timeout_seconds", &p.TickTimeoutSeconds, defaultPollTickTimeout),
		intFieldDefault("poll.history_window_seconds", &p.HistoryWindowSeconds, defaultHistoryWindow),
		intFieldDefault("poll.history_max", &p.HistoryMax, defaultHistoryMax),
		boolFieldDefault("poll.auto_start", &p.AutoStart, false),
	)
}

func (s *SnapshotConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("snapshot.timeout_seconds", &s.TimeoutSeconds, defaultSnapshotTimeout),
	)
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("broker.timeout_seconds", &b.TimeoutSeconds, defaultBrokerTimeout),
		fieldDefault{
			key:   "broker.rate_limit_per_second",
			need:  func() bool { return b.RateLimitPerSecond <= 0 },
			apply: func() { b.RateLimitPerSecond = defaultBrokerRate },
		},
		intFieldDefault("broker.rate_burst", &b.RateBurst, defaultBrokerBurst),
		intFieldDefault("broker.retry_attempts", &b.RetryAttempts, defaultBrokerRetries),
		intFieldDefault("broker.retry_base_millis", &b.RetryBaseMillis, defaultBrokerRetryBaseMs),
		intFieldDefault("broker.retry_max_millis", &b.RetryMaxMillis, defaultBrokerRetryMaxMs),
		intFieldDefault("broker.breaker_threshold", &b.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("broker.breaker_cooldown_seconds", &b.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func (l *LiveConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("live.recovery_path", &l.RecoveryPath, defaultLiveRecoveryPath),
		intFieldDefault("live.persist_attempts", &l.PersistAttempts, defaultLivePersistTries),
		stringFieldDefault("live.order_type", &l.OrderType, defaultLiveOrderType),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.exchange", &t.Exchange, defaultExchange),
		stringFieldDefault("trading.strategy_mode", &t.StrategyMode, defaultStrategyMode),
		intFieldDefault("trading.max_trades_per_day", &t.MaxTradesPerDay, defaultMaxTradesPerDay),
		stringFieldDefault("trading.qty_mode", &t.QtyMode, defaultQtyMode),
		intFieldDefault("trading.lots", &t.Lots, defaultLots),
		intFieldDefault("trading.qty_per_lot", &t.QtyPerLot, defaultQtyPerLot),
		stringFieldDefault("trading.product_type", &t.ProductType, defaultProductType),
		stringFieldDefault("trading.exit_style", &t.ExitStyle, defaultExitStyle),
		fieldDefault{
			key:   "trading.target_pct",
			need:  func() bool { return t.TargetPct <= 0 },
			apply: func() { t.TargetPct = defaultTargetPct },
		},
		intFieldDefault("trading.history_limit", &t.HistoryLimit, defaultHistoryLimit),
	)
}

func (t *TuningConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("tuning.path", &t.Path, defaultTuningPath),
		boolFieldDefault("tuning.watch", &t.Watch, true),
	)
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("storage.db_path", &s.DBPath, defaultDBPath),
	)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("notify.telegram.base_url", &n.Telegram.BaseURL, defaultTelegramBaseURL),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
