package model

// Bar 一根已收盘的K线，Timestamp为bar起点的unix秒
// 序列内时间戳严格递增，不允许重复
type Bar struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp int64
}

// Bullish 是否阳线
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

// IndicatorSnapshot 某个已收盘bar上的指标快照
// 每个周期从K线窗口整体重算，不单独落库
type IndicatorSnapshot struct {
	Macd       float64
	Signal     float64
	Histogram  float64
	MaFast     float64
	MaSlow     float64
	Volatility float64
}
