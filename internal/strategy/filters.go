package strategy

import (
	"fmt"

	"tradeflow/internal/model"
)

// 入场过滤器：具名谓词的有序列表
// 决策计数和审计日志消费同一份FilterCheck，条件逻辑不写两遍

const priceEps = 1e-9

type filterFunc func(in EvalInput) model.FilterCheck

var buyFilters = []filterFunc{
	filterMacdPositive,
	filterSignalPositive,
	filterBullishCandle,
	filterMacdTrendingUp,
	filterAboveMaFast,
	filterAboveMaSlow,
}

// NumBuyFilters 过滤器总数，required_passes的上界
func NumBuyFilters() int { return len(buyFilters) }

func filterMacdPositive(in EvalInput) model.FilterCheck {
	pass := in.Cur.Macd > 0
	return model.FilterCheck{
		Name:   "macd_positive",
		Pass:   pass,
		Reason: fmt.Sprintf("macd=%.6f", in.Cur.Macd),
	}
}

func filterSignalPositive(in EvalInput) model.FilterCheck {
	pass := in.Cur.Signal > 0
	return model.FilterCheck{
		Name:   "signal_positive",
		Pass:   pass,
		Reason: fmt.Sprintf("signal=%.6f", in.Cur.Signal),
	}
}

func filterBullishCandle(in EvalInput) model.FilterCheck {
	pass := in.Bar.Close-in.Bar.Open > priceEps
	return model.FilterCheck{
		Name:   "bullish_candle",
		Pass:   pass,
		Reason: fmt.Sprintf("open=%.4f close=%.4f", in.Bar.Open, in.Bar.Close),
	}
}

func filterMacdTrendingUp(in EvalInput) model.FilterCheck {
	pass := in.Cur.Macd-in.Prev.Macd > 0
	return model.FilterCheck{
		Name:   "macd_trending_up",
		Pass:   pass,
		Reason: fmt.Sprintf("macd[t-1]=%.6f macd[t]=%.6f", in.Prev.Macd, in.Cur.Macd),
	}
}

func filterAboveMaFast(in EvalInput) model.FilterCheck {
	pass := in.Bar.Close-in.Cur.MaFast > priceEps
	return model.FilterCheck{
		Name:   "above_ma_fast",
		Pass:   pass,
		Reason: fmt.Sprintf("close=%.4f ma_fast=%.4f", in.Bar.Close, in.Cur.MaFast),
	}
}

func filterAboveMaSlow(in EvalInput) model.FilterCheck {
	pass := in.Bar.Close-in.Cur.MaSlow > priceEps
	return model.FilterCheck{
		Name:   "above_ma_slow",
		Pass:   pass,
		Reason: fmt.Sprintf("close=%.4f ma_slow=%.4f", in.Bar.Close, in.Cur.MaSlow),
	}
}

// runBuyFilters 按固定顺序执行全部过滤器并统计通过数
func runBuyFilters(in EvalInput) ([]model.FilterCheck, int) {
	checks := make([]model.FilterCheck, 0, len(buyFilters))
	passed := 0
	for _, f := range buyFilters {
		c := f(in)
		if c.Pass {
			passed++
		}
		checks = append(checks, c)
	}
	return checks, passed
}
