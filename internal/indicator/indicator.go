package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"tradeflow/internal/model"
)

// 指标引擎：对一段已收盘K线窗口整体计算MACD、均线和波动率
// 每个周期重算，成本由窗口长度限制

type Config struct {
	MacdFast     int
	MacdSlow     int
	MacdSignal   int
	MaFastPeriod int
	MaSlowPeriod int
	VolWindow    int
	UseEMA       bool // 均线用EMA，否则SMA
}

func ConfigFromParams(p model.StrategyParams) Config {
	return Config{
		MacdFast:     p.MacdFast,
		MacdSlow:     p.MacdSlow,
		MacdSignal:   p.MacdSignal,
		MaFastPeriod: p.MaFastPeriod,
		MaSlowPeriod: p.MaSlowPeriod,
		VolWindow:    p.VolWindow,
		UseEMA:       p.UseEMA,
	}
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// MinBars 计算有效快照所需的最少K线数量
func (e *Engine) MinBars() int {
	min := e.cfg.MacdSlow + e.cfg.MacdSignal
	if e.cfg.MaSlowPeriod > min {
		min = e.cfg.MaSlowPeriod
	}
	if e.cfg.VolWindow+1 > min {
		min = e.cfg.VolWindow + 1
	}
	return min
}

// Compute 返回和bars等长的快照序列，至少保证最后两个下标可用于交叉判断
// 窗口不足返回 model.ErrInsufficientData，调用方本周期跳过评估即可
func (e *Engine) Compute(bars []model.Bar) ([]model.IndicatorSnapshot, error) {
	if len(bars) < e.MinBars() {
		return nil, model.ErrInsufficientData
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	macdLine, signalLine, hist := talib.Macd(closes, e.cfg.MacdFast, e.cfg.MacdSlow, e.cfg.MacdSignal)

	var maFast, maSlow []float64
	if e.cfg.UseEMA {
		maFast = talib.Ema(closes, e.cfg.MaFastPeriod)
		maSlow = talib.Ema(closes, e.cfg.MaSlowPeriod)
	} else {
		maFast = talib.Sma(closes, e.cfg.MaFastPeriod)
		maSlow = talib.Sma(closes, e.cfg.MaSlowPeriod)
	}

	vol := e.volatility(closes)

	snaps := make([]model.IndicatorSnapshot, len(bars))
	for i := range bars {
		snaps[i] = model.IndicatorSnapshot{
			Macd:       macdLine[i],
			Signal:     signalLine[i],
			Histogram:  hist[i],
			MaFast:     maFast[i],
			MaSlow:     maSlow[i],
			Volatility: vol[i],
		}
	}
	return snaps, nil
}

// volatility 对数收益率的滚动标准差，和收盘价序列对齐
func (e *Engine) volatility(closes []float64) []float64 {
	returns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			returns[i] = math.Log(closes[i] / closes[i-1])
		}
	}
	std := talib.StdDev(returns, e.cfg.VolWindow, 1.0)
	for i := range std {
		if math.IsNaN(std[i]) {
			std[i] = 0
		}
	}
	return std
}

// MeanVolatility 窗口内有效波动率均值，过滤阈值的动态调整用
func MeanVolatility(snaps []model.IndicatorSnapshot) float64 {
	var sum float64
	var n int
	for _, s := range snaps {
		if s.Volatility > 0 {
			sum += s.Volatility
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
