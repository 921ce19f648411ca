package entity

import "time"

// VirtualBalance 模拟账本余额，每个用户×资产一行
type VirtualBalance struct {
	ID      int64   `gorm:"primaryKey"`
	UserID  string  `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_user_asset"`
	Asset   string  `gorm:"type:varchar(20);not null;uniqueIndex:uk_user_asset"` // KRW / BTC / ...
	Balance float64 `gorm:"type:decimal(24,8)"`

	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (VirtualBalance) TableName() string {
	return "virtual_balances"
}
