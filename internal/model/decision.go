package model

// DecisionType 每根收盘bar最多产生一个决策
type DecisionType string

const (
	DecisionBuy  DecisionType = "BUY"
	DecisionSell DecisionType = "SELL"
	DecisionHold DecisionType = "HOLD"
)

// FilterCheck 一个具名过滤条件的执行结果
// 决策逻辑和审计日志消费同一份结果，避免条件判断写两遍
type FilterCheck struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// TradeDecision 单根bar的评估结论，产生后立刻交给派单器消费
type TradeDecision struct {
	Type     DecisionType
	Reason   string
	BarIndex int
	Price    float64 // 信号触发时的收盘价
	Checks   []FilterCheck
}
