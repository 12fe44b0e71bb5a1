package model

import (
	"time"

	"gorm.io/datatypes"
)

// Trade sources in the ledger.
const (
	SourcePaper = "PAPER"
	SourceLive  = "LIVE"
)

// ClosedTradeModel is one row of the append-only closed-trade ledger.
// DedupeKey is LIVE:<entry order no> for live trades and PAPER:<trade id>
// for simulated ones, so a trade reconstructed twice lands once.
type ClosedTradeModel struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DedupeKey     string    `gorm:"column:dedupe_key;uniqueIndex"`
	Source        string    `gorm:"column:source;index"`
	TradeID       string    `gorm:"column:trade_id"`
	Mode          string    `gorm:"column:mode"`
	TradingSymbol string    `gorm:"column:trading_symbol"`
	Exchange      string    `gorm:"column:exchange"`
	OptType       string    `gorm:"column:opt_type"`
	Strike        float64   `gorm:"column:strike"`
	Qty           int       `gorm:"column:qty"`
	EntryOrderNo  string    `gorm:"column:entry_order_no"`
	ExitOrderNo   string    `gorm:"column:exit_order_no"`
	EntryPrice    float64   `gorm:"column:entry_price"`
	ExitPrice     float64   `gorm:"column:exit_price"`
	PeakPrice     float64   `gorm:"column:peak_price"`
	SLPrice       float64   `gorm:"column:sl_price"`
	PnL           float64   `gorm:"column:pnl"`
	ExitReason    string    `gorm:"column:exit_reason"`
	EntryTs       time.Time `gorm:"column:entry_ts"`
	ExitTs        time.Time `gorm:"column:exit_ts;index"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (ClosedTradeModel) TableName() string { return "closed_trades" }

// CommandModel journals one control command and its outcome.
type CommandModel struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Type      string         `gorm:"column:type;index"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	Error     string         `gorm:"column:error"`
	TraceID   string         `gorm:"column:trace_id"`
	Duration  int64          `gorm:"column:duration_ms"`
	CreatedAt time.Time      `gorm:"column:created_at;index"`
}

func (CommandModel) TableName() string { return "command_journal" }

// All lists the models to migrate.
func All() []any {
	return []any{&ClosedTradeModel{}, &CommandModel{}}
}
