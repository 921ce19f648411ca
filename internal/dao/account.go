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

type AccountDao struct {
	db *gorm.DB
}

func NewAccountDao(db *gorm.DB) *AccountDao {
	return &AccountDao{db: db}
}

// InitAccount 初始化模拟账户，已存在则不动
func (d *AccountDao) InitAccount(ctx context.Context, userID, asset string, seed float64) error {
	rec := &entity.VirtualBalance{
		ID:        utils.NewID(),
		UserID:    userID,
		Asset:     asset,
		Balance:   seed,
		UpdatedAt: time.Now(),
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "asset"}},
		DoNothing: true,
	}).Create(rec).Error
}

func (d *AccountDao) Balance(ctx context.Context, userID, asset string) (float64, error) {
	var rec entity.VirtualBalance
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND asset = ?", userID, asset).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return rec.Balance, err
}

// SetBalance 覆盖写余额，单次调用原子
func (d *AccountDao) SetBalance(ctx context.Context, userID, asset string, balance float64) error {
	rec := &entity.VirtualBalance{
		ID:        utils.NewID(),
		UserID:    userID,
		Asset:     asset,
		Balance:   balance,
		UpdatedAt: time.Now(),
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(rec).Error
}
