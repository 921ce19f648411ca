package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeflow/internal/model/entity"
	"tradeflow/utils"
)

type PositionDao struct {
	db *gorm.DB
}

func NewPositionDao(db *gorm.DB) *PositionDao {
	return &PositionDao{db: db}
}

func (d *PositionDao) Read(ctx context.Context, userID, ticker string) (*entity.PositionRecord, error) {
	var rec entity.PositionRecord
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND ticker = ?", userID, ticker).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rec, err
}

// Write 按 (user_id, ticker) upsert，单次调用原子
func (d *PositionDao) Write(ctx context.Context, rec *entity.PositionRecord) error {
	if rec.ID == 0 {
		rec.ID = utils.NewID()
	}
	rec.UpdatedAt = time.Now()
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"has_position", "qty", "entry_price", "entry_bar_index",
			"highest_price", "trailing_armed", "bars_held", "updated_at",
		}),
	}).Create(rec).Error
}
