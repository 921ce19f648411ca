package dao

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tradeflow/internal/model/entity"
	"tradeflow/utils"
)

type AuditDao struct {
	db *gorm.DB
}

func NewAuditDao(db *gorm.DB) *AuditDao {
	return &AuditDao{db: db}
}

// Record 追加一条审计记录，核心从不更新或删除
func (d *AuditDao) Record(ctx context.Context, entry *entity.AuditEntry) error {
	if entry.ID == 0 {
		entry.ID = utils.NewID()
	}
	entry.CreatedAt = time.Now()
	return d.db.WithContext(ctx).Create(entry).Error
}

// ListRecent 最近的评估记录，看板展示用
func (d *AuditDao) ListRecent(ctx context.Context, userID string, limit int) ([]*entity.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []*entity.AuditEntry
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
