package sqlite

import (
	"context"
	"errors"
	"time"

	"optdesk/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type journalRepository struct {
	db *gorm.DB
}

func (r *journalRepository) Record(ctx context.Context, row *model.CommandModel) error {
	if row == nil {
		return errors.New("journal row cannot be nil")
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	row.CreatedAt = row.CreatedAt.UTC()
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *journalRepository) Recent(ctx context.Context, limit int) ([]model.CommandModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.CommandModel
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error
	return rows, err
}
