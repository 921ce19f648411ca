package entity

import "time"

// PositionRecord 每个用户×交易对一行的仓位快照
// 只由该用户的策略状态机经由仓位存储写入，单次写入原子
type PositionRecord struct {
	ID     int64  `gorm:"primaryKey"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_user_ticker"`
	Ticker string `gorm:"type:varchar(30);not null;uniqueIndex:uk_user_ticker"`

	HasPosition   bool    `gorm:"column:has_position"`
	Qty           float64 `gorm:"type:decimal(20,8)"`
	EntryPrice    float64 `gorm:"column:entry_price;type:decimal(20,8)"`
	EntryBarIndex int     `gorm:"column:entry_bar_index"`
	HighestPrice  float64 `gorm:"column:highest_price;type:decimal(20,8)"`
	TrailingArmed bool    `gorm:"column:trailing_armed"`
	BarsHeld      int     `gorm:"column:bars_held"`

	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (PositionRecord) TableName() string {
	return "position_records"
}
