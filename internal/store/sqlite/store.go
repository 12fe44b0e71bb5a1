package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"optdesk/internal/store"
	"optdesk/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// SqliteStore keeps the ledger and the command journal in one database,
// opened through the pure-Go "sqlite" driver.
type SqliteStore struct {
	db *gorm.DB
}

var _ store.Store = (*SqliteStore)(nil)

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewSqliteStoreFromDB(db)
}

func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Ledger() store.LedgerRepository { return &ledgerRepository{db: s.db} }

func (s *SqliteStore) Journal() store.JournalRepository { return &journalRepository{db: s.db} }

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
