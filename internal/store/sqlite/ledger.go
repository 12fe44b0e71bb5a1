package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"optdesk/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) Append(ctx context.Context, row *model.ClosedTradeModel) (bool, error) {
	if row == nil {
		return false, errors.New("ledger row cannot be nil")
	}
	if strings.TrimSpace(row.DedupeKey) == "" {
		return false, errors.New("ledger row needs a dedupe key")
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	// Timestamps are compared as text by SQLite; keep a single zone.
	row.CreatedAt = row.CreatedAt.UTC()
	row.EntryTs = row.EntryTs.UTC()
	row.ExitTs = row.ExitTs.UTC()
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ledgerRepository) Range(ctx context.Context, from, to time.Time, source string) ([]model.ClosedTradeModel, error) {
	q := r.db.WithContext(ctx).Model(&model.ClosedTradeModel{})
	if !from.IsZero() {
		q = q.Where("exit_ts >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("exit_ts < ?", to.UTC())
	}
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var rows []model.ClosedTradeModel
	if err := q.Order("exit_ts asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
