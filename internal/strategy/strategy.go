package strategy

import (
	"fmt"

	"tradeflow/internal/model"
)

// 策略状态机：FLAT检测金叉+过滤器，IN_POSITION按固定优先级检测离场
// 状态迁移只在成交确认后发生，Evaluate本身从不改仓位持仓标记

type Strategy struct {
	params model.StrategyParams
}

func New(params model.StrategyParams) *Strategy {
	return &Strategy{params: params}
}

// EvalInput 单根收盘bar的评估输入，Cur/Prev来自同一份快照序列的最后两个下标
type EvalInput struct {
	Bar      model.Bar
	Prev     model.IndicatorSnapshot
	Cur      model.IndicatorSnapshot
	BarIndex int
	MeanVol  float64 // 快照窗口内的波动率均值，0表示不做动态调整
}

// Evaluate 计算单根bar的交易决策
// 无信号不是错误，HOLD是正常结论，所有分支都带完整的条件明细供审计
// Track（最高价、bars_held、移动止损武装）由调用方在持仓时先行更新
func (s *Strategy) Evaluate(in EvalInput, pos *PositionState) model.TradeDecision {
	if pos.HasPosition {
		return s.evaluateExit(in, pos)
	}
	return s.evaluateEntry(in)
}

func (s *Strategy) evaluateEntry(in EvalInput) model.TradeDecision {
	// 金叉：macd[t-1] <= signal[t-1] 且 macd[t] > signal[t]，用差值比较避免浮点相等判断
	prevDiff := in.Prev.Macd - in.Prev.Signal
	curDiff := in.Cur.Macd - in.Cur.Signal
	goldenCross := prevDiff <= 0 && curDiff > 0

	if !goldenCross {
		return model.TradeDecision{
			Type:     model.DecisionHold,
			Reason:   "no_golden_cross",
			BarIndex: in.BarIndex,
			Price:    in.Bar.Close,
			Checks: []model.FilterCheck{{
				Name:   "golden_cross",
				Pass:   false,
				Reason: fmt.Sprintf("diff[t-1]=%.6f diff[t]=%.6f", prevDiff, curDiff),
			}},
		}
	}

	checks, passed := runBuyFilters(in)
	checks = append([]model.FilterCheck{{
		Name:   "golden_cross",
		Pass:   true,
		Reason: fmt.Sprintf("diff[t-1]=%.6f diff[t]=%.6f", prevDiff, curDiff),
	}}, checks...)

	required := s.effectiveRequiredPasses(in.Cur.Volatility, in.MeanVol)
	if passed < required {
		return model.TradeDecision{
			Type:     model.DecisionHold,
			Reason:   fmt.Sprintf("filters_not_met passed=%d required=%d", passed, required),
			BarIndex: in.BarIndex,
			Price:    in.Bar.Close,
			Checks:   checks,
		}
	}

	return model.TradeDecision{
		Type:     model.DecisionBuy,
		Reason:   fmt.Sprintf("golden_cross passed=%d required=%d", passed, required),
		BarIndex: in.BarIndex,
		Price:    in.Bar.Close,
		Checks:   checks,
	}
}

// effectiveRequiredPasses 按波动率动态调整过滤阈值
// 低波动（<0.75×均值）收紧一档，高波动（>1.5×均值）放宽一档，夹在[1, 过滤器总数]之间
func (s *Strategy) effectiveRequiredPasses(vol, meanVol float64) int {
	required := s.params.RequiredFilterPasses
	if meanVol > 0 && vol > 0 {
		switch {
		case vol < 0.75*meanVol:
			required++
		case vol > 1.5*meanVol:
			required--
		}
	}
	if required < 1 {
		required = 1
	}
	if max := NumBuyFilters(); required > max {
		required = max
	}
	return required
}

func (s *Strategy) evaluateExit(in EvalInput, pos *PositionState) model.TradeDecision {
	pnl := pos.PnlRate(in.Bar.Close)
	prevDiff := in.Prev.Macd - in.Prev.Signal
	curDiff := in.Cur.Macd - in.Cur.Signal

	checks := []model.FilterCheck{
		{
			Name:   "stop_loss",
			Pass:   pnl <= -s.params.StopLossPct,
			Reason: fmt.Sprintf("pnl=%.4f threshold=%.4f", pnl, -s.params.StopLossPct),
		},
		{
			Name:   "take_profit",
			Pass:   pnl >= s.params.TakeProfitPct,
			Reason: fmt.Sprintf("pnl=%.4f threshold=%.4f", pnl, s.params.TakeProfitPct),
		},
		{
			Name:   "trailing_stop",
			Pass:   pos.TrailingArmed && in.Bar.Close <= pos.HighestPrice*(1-s.params.TrailingPct),
			Reason: fmt.Sprintf("armed=%v close=%.4f highest=%.4f", pos.TrailingArmed, in.Bar.Close, pos.HighestPrice),
		},
		{
			Name:   "macd_exit",
			Pass:   s.params.MacdExitEnabled && in.Cur.Macd < 0,
			Reason: fmt.Sprintf("enabled=%v macd=%.6f", s.params.MacdExitEnabled, in.Cur.Macd),
		},
		{
			Name:   "dead_cross",
			Pass:   prevDiff >= 0 && curDiff < 0,
			Reason: fmt.Sprintf("diff[t-1]=%.6f diff[t]=%.6f", prevDiff, curDiff),
		},
	}

	// 最小持有期内只允许止损离场，其余触发全部压制
	inMinHolding := pos.BarsHeld < s.params.MinHoldingBars
	suppressed := false

	for i, c := range checks {
		if !c.Pass {
			continue
		}
		if inMinHolding && c.Name != "stop_loss" {
			checks[i].Reason += " suppressed_by_min_holding"
			suppressed = true
			continue
		}
		return model.TradeDecision{
			Type:     model.DecisionSell,
			Reason:   c.Name,
			BarIndex: in.BarIndex,
			Price:    in.Bar.Close,
			Checks:   checks,
		}
	}

	reason := "no_exit_trigger"
	if suppressed {
		reason = fmt.Sprintf("min_holding bars_held=%d required=%d", pos.BarsHeld, s.params.MinHoldingBars)
	}
	return model.TradeDecision{
		Type:     model.DecisionHold,
		Reason:   reason,
		BarIndex: in.BarIndex,
		Price:    in.Bar.Close,
		Checks:   checks,
	}
}
