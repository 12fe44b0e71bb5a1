package store

import (
	"context"
	"time"

	"optdesk/internal/store/model"
)

// LedgerRepository is the append-only closed-trade ledger.
type LedgerRepository interface {
	// Append stores a closed trade once. It reports false when a row with the
	// same dedupe key already exists.
	Append(ctx context.Context, row *model.ClosedTradeModel) (bool, error)
	// Range lists trades whose exit time falls in [from, to), oldest first.
	// An empty source matches both paper and live rows.
	Range(ctx context.Context, from, to time.Time, source string) ([]model.ClosedTradeModel, error)
}

// JournalRepository records control commands.
type JournalRepository interface {
	Record(ctx context.Context, row *model.CommandModel) error
	Recent(ctx context.Context, limit int) ([]model.CommandModel, error)
}

// Store is the entry point for database access.
type Store interface {
	Ledger() LedgerRepository
	Journal() JournalRepository
	Close() error
}
