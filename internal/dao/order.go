package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tradeflow/internal/model"
	"tradeflow/internal/model/entity"
	"tradeflow/utils"
)

type OrderDao struct {
	db *gorm.DB
}

func NewOrderDao(db *gorm.DB) *OrderDao {
	return &OrderDao{db: db}
}

// Create 插入下单记录
func (d *OrderDao) Create(ctx context.Context, rec *entity.OrderRecord) error {
	if rec.ID == 0 {
		rec.ID = utils.NewID()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return d.db.WithContext(ctx).Create(rec).Error
}

// Update 更新订单，只允许从PENDING推进到终态
func (d *OrderDao) Update(ctx context.Context, rec *entity.OrderRecord) (bool, error) {
	rec.UpdatedAt = time.Now()
	tx := d.db.WithContext(ctx).
		Model(&entity.OrderRecord{}).
		Where("id = ? AND status = ?", rec.ID, string(model.OrderPending)).
		Updates(map[string]interface{}{
			"status":         rec.Status,
			"filled_qty":     rec.FilledQty,
			"avg_fill_price": rec.AvgFillPrice,
			"fee":            rec.Fee,
			"updated_at":     rec.UpdatedAt,
		})
	return tx.RowsAffected == 1, tx.Error
}

func (d *OrderDao) Get(ctx context.Context, id int64) (*entity.OrderRecord, error) {
	var rec entity.OrderRecord
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rec, err
}

// ExistsKey 幂等键是否已存在
func (d *OrderDao) ExistsKey(ctx context.Context, key string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&entity.OrderRecord{}).
		Where("idempotency_key = ?", key).Count(&count).Error
	return count > 0, err
}

// ListPending 某个用户所有在途订单
func (d *OrderDao) ListPending(ctx context.Context, userID string) ([]*entity.OrderRecord, error) {
	var recs []*entity.OrderRecord
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(model.OrderPending)).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}

// CountPending 用户×交易对的在途订单数，单仓约束用
func (d *OrderDao) CountPending(ctx context.Context, userID, ticker string) (int, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&entity.OrderRecord{}).
		Where("user_id = ? AND ticker = ? AND status = ?", userID, ticker, string(model.OrderPending)).
		Count(&count).Error
	return int(count), err
}

// LastFilledBuy 最近一笔成交的买单，重启后恢复进场价用
func (d *OrderDao) LastFilledBuy(ctx context.Context, userID, ticker string) (*entity.OrderRecord, error) {
	var rec entity.OrderRecord
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND ticker = ? AND side = ? AND status = ?",
			userID, ticker, string(model.Buy), string(model.OrderFilled)).
		Order("created_at DESC").
		Limit(1).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rec, err
}
