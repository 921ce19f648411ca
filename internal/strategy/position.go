package strategy

// PositionState 每个用户×标的一份的持仓状态
// 只由策略状态机（以及成交确认路径）修改，其他组件只读
type PositionState struct {
	HasPosition   bool    `json:"has_position"`
	Qty           float64 `json:"qty"`
	EntryPrice    float64 `json:"entry_price"`
	EntryBarIndex int     `json:"entry_bar_index"`
	HighestPrice  float64 `json:"highest_price"`
	TrailingArmed bool    `json:"trailing_armed"`
	BarsHeld      int     `json:"bars_held"`
}

// Open 买单成交确认后开仓，决策阶段不会调用
func (p *PositionState) Open(qty, price float64, barIndex int) {
	p.HasPosition = true
	p.Qty = qty
	p.EntryPrice = price
	p.EntryBarIndex = barIndex
	p.HighestPrice = price
	p.TrailingArmed = false
	p.BarsHeld = 0
}

// Close 卖单成交确认后清空
func (p *PositionState) Close() {
	*p = PositionState{}
}

// PnlRate 相对入场价的收益率，空仓返回0
func (p *PositionState) PnlRate(close float64) float64 {
	if !p.HasPosition || p.EntryPrice <= 0 {
		return 0
	}
	return (close - p.EntryPrice) / p.EntryPrice
}

// Track 持仓中每根bar调用一次：更新最高价、持有bar数，按激活阈值（单向）武装移动止损
func (p *PositionState) Track(close, activationPct float64) {
	if !p.HasPosition {
		return
	}
	if close > p.HighestPrice {
		p.HighestPrice = close
	}
	p.BarsHeld++
	if !p.TrailingArmed && p.PnlRate(close) >= activationPct {
		p.TrailingArmed = true
	}
}

// Corrupted 状态自检，发现不变量被破坏时引擎应转入FAILED而不是继续交易
func (p *PositionState) Corrupted() bool {
	if p.HasPosition && (p.EntryPrice <= 0 || p.Qty <= 0) {
		return true
	}
	if !p.HasPosition && (p.EntryPrice != 0 || p.Qty != 0) {
		return true
	}
	return false
}

// FromRecord 从持久化记录恢复，引擎重启时调用
func FromRecord(rec *PositionRecordView) PositionState {
	if rec == nil || !rec.HasPosition {
		return PositionState{}
	}
	return PositionState{
		HasPosition:   true,
		Qty:           rec.Qty,
		EntryPrice:    rec.EntryPrice,
		EntryBarIndex: rec.EntryBarIndex,
		HighestPrice:  rec.HighestPrice,
		TrailingArmed: rec.TrailingArmed,
		BarsHeld:      rec.BarsHeld,
	}
}

// PositionRecordView 持久层传入的恢复视图，避免策略包依赖entity
type PositionRecordView struct {
	HasPosition   bool
	Qty           float64
	EntryPrice    float64
	EntryBarIndex int
	HighestPrice  float64
	TrailingArmed bool
	BarsHeld      int
}
