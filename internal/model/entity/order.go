package entity

import "time"

// OrderRecord 订单落库记录
// 状态只允许 PENDING -> FILLED/REJECTED/CANCELED，终态后不可变更
type OrderRecord struct {
	ID     int64  `gorm:"primaryKey"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;index:idx_user_ticker"`
	Ticker string `gorm:"type:varchar(30);not null;index:idx_user_ticker"`
	Side   string `gorm:"type:varchar(10);not null"` // buy/sell
	Status string `gorm:"type:varchar(10);not null;index:idx_status"`

	// 同一用户同一bar同一方向的唯一键，重复派单被数据库兜底拦截
	IdempotencyKey string `gorm:"column:idempotency_key;type:char(64);not null;uniqueIndex:uk_idem_key"`

	// 交易所侧订单号，实盘对账用
	ProviderID string `gorm:"column:provider_id;type:varchar(64);index:idx_provider"`

	RequestedQty   float64 `gorm:"column:requested_qty;type:decimal(20,8)"`
	FilledQty      float64 `gorm:"column:filled_qty;type:decimal(20,8)"`
	AvgFillPrice   float64 `gorm:"column:avg_fill_price;type:decimal(20,8)"`
	Fee            float64 `gorm:"type:decimal(20,8)"`
	ReferencePrice float64 `gorm:"column:reference_price;type:decimal(20,8)"` // 信号价
	BarIndex       int     `gorm:"column:bar_index"`
	Reason         string  `gorm:"type:varchar(100)"` // 触发下单的决策原因

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (OrderRecord) TableName() string {
	return "order_records"
}
