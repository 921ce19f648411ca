package entity

import (
	"time"

	"github.com/goccy/go-json"

	"tradeflow/internal/model"
)

// AuditEntry 审计日志，append-only
// 每根收盘bar记录一条完整的评估快照，不管有没有产生订单
type AuditEntry struct {
	ID       int64     `gorm:"primaryKey"`
	UserID   string    `gorm:"column:user_id;type:varchar(64);not null;index:idx_audit_user"`
	Ticker   string    `gorm:"type:varchar(30);not null;index:idx_audit_user"`
	BarIndex int       `gorm:"column:bar_index"`
	BarTime  time.Time `gorm:"column:bar_time;type:timestamp"`
	Price    float64   `gorm:"type:decimal(20,8)"`

	Macd       float64 `gorm:"type:decimal(20,8)"`
	Signal     float64 `gorm:"type:decimal(20,8)"`
	Histogram  float64 `gorm:"type:decimal(20,8)"`
	MaFast     float64 `gorm:"column:ma_fast;type:decimal(20,8)"`
	MaSlow     float64 `gorm:"column:ma_slow;type:decimal(20,8)"`
	Volatility float64 `gorm:"type:decimal(20,8)"`

	Decision string `gorm:"type:varchar(10);not null"` // BUY/SELL/HOLD
	Reason   string `gorm:"type:varchar(200)"`

	// 各过滤条件的通过情况，json存储 []model.FilterCheck
	ChecksJSON string `gorm:"column:checks_json;type:json"`

	// 参数快照，仅engine_start和force_exit时记录
	ParamsJSON string `gorm:"column:params_json;type:json"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}

// SetChecks 把过滤结果序列化进ChecksJSON
func (a *AuditEntry) SetChecks(checks []model.FilterCheck) {
	if len(checks) == 0 {
		return
	}
	data, err := json.Marshal(checks)
	if err != nil {
		return
	}
	a.ChecksJSON = string(data)
}

// SetParams 把当前生效的策略参数序列化进ParamsJSON
func (a *AuditEntry) SetParams(p model.StrategyParams) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	a.ParamsJSON = string(data)
}
