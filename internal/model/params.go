package model

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

// ExecMode 执行模式，启动时选定，运行中不允许切换
type ExecMode string

const (
	ModeTest ExecMode = "test" // 模拟账本
	ModeLive ExecMode = "live" // 实盘交易所
)

// StrategyParams 每个用户一份的策略参数，核心只读
// 数值参数入库前全部做范围校验
type StrategyParams struct {
	Ticker   string   `json:"ticker" validate:"required"`
	Interval string   `json:"interval" validate:"required"`
	Mode     ExecMode `json:"mode" validate:"required,oneof=test live"`

	TakeProfitPct         float64 `json:"take_profit_pct" validate:"gt=0,lt=1"`
	StopLossPct           float64 `json:"stop_loss_pct" validate:"gt=0,lt=1"`
	MinHoldingBars        int     `json:"min_holding_bars" validate:"gte=0"`
	TrailingPct           float64 `json:"trailing_pct" validate:"gt=0,lt=1"`
	TrailingActivationPct float64 `json:"trailing_activation_pct" validate:"gte=0,lt=1"`
	MacdExitEnabled       bool    `json:"macd_exit_enabled"`
	RequiredFilterPasses  int     `json:"required_filter_passes" validate:"gte=1"`
	FeeRate               float64 `json:"fee_rate" validate:"gte=0,lt=0.1"`

	// 下单相关
	OrderRatio  float64 `json:"order_ratio" validate:"gt=0,lte=1"` // 可用余额的下单比例
	MinNotional float64 `json:"min_notional" validate:"gte=0"`     // 最小下单金额

	// 指标周期
	MacdFast     int `json:"macd_fast" validate:"gt=0"`
	MacdSlow     int `json:"macd_slow" validate:"gt=0"`
	MacdSignal   int `json:"macd_signal" validate:"gt=0"`
	MaFastPeriod int `json:"ma_fast_period" validate:"gt=0"`
	MaSlowPeriod int `json:"ma_slow_period" validate:"gt=0"`
	VolWindow    int `json:"vol_window" validate:"gt=1"`
	UseEMA       bool `json:"use_ema"` // 均线用EMA还是SMA
}

// DefaultParams 返回一份带默认值的参数，handler在其上覆盖用户输入
func DefaultParams() StrategyParams {
	return StrategyParams{
		Interval:              "minute5",
		Mode:                  ModeTest,
		TakeProfitPct:         0.03,
		StopLossPct:           0.01,
		MinHoldingBars:        5,
		TrailingPct:           0.02,
		TrailingActivationPct: 0.01,
		MacdExitEnabled:       true,
		RequiredFilterPasses:  3,
		FeeRate:               0.0005,
		OrderRatio:            0.5,
		MinNotional:           5000,
		MacdFast:              12,
		MacdSlow:              26,
		MacdSignal:            9,
		MaFastPeriod:          20,
		MaSlowPeriod:          60,
		VolWindow:             20,
	}
}

var validate = validator.New()

// Validate 范围校验加跨字段校验，错误聚合后一次性返回
func (p StrategyParams) Validate() error {
	var err error
	if verr := validate.Struct(p); verr != nil {
		err = multierr.Append(err, verr)
	}
	if p.StopLossPct >= p.TakeProfitPct {
		err = multierr.Append(err, errors.New("stop_loss_pct must be less than take_profit_pct"))
	}
	if p.MacdFast >= p.MacdSlow {
		err = multierr.Append(err, errors.New("macd_fast must be less than macd_slow"))
	}
	if p.MaFastPeriod >= p.MaSlowPeriod {
		err = multierr.Append(err, errors.New("ma_fast_period must be less than ma_slow_period"))
	}
	if p.TrailingActivationPct >= p.TakeProfitPct {
		err = multierr.Append(err, errors.New("trailing_activation_pct must be less than take_profit_pct"))
	}
	return err
}
