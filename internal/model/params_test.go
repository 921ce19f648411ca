package model

import (
	"strings"
	"testing"
)

func validParams() StrategyParams {
	p := DefaultParams()
	p.Ticker = "KRW-BTC"
	return p
}

func TestValidateDefaults(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestValidateMissingTicker(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for missing ticker")
	}
}

func TestValidateCrossField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*StrategyParams)
		want   string
	}{
		{"stop loss above take profit", func(p *StrategyParams) { p.StopLossPct = 0.05 }, "stop_loss_pct"},
		{"macd fast above slow", func(p *StrategyParams) { p.MacdFast = 30 }, "macd_fast"},
		{"ma fast above slow", func(p *StrategyParams) { p.MaFastPeriod = 80 }, "ma_fast_period"},
		{"activation above take profit", func(p *StrategyParams) { p.TrailingActivationPct = 0.05 }, "trailing_activation_pct"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := validParams()
			c.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %s", err.Error(), c.want)
			}
		})
	}
}

func TestValidateRangeChecks(t *testing.T) {
	p := validParams()
	p.Mode = "paper"
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	p = validParams()
	p.OrderRatio = 1.5
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for order_ratio above 1")
	}

	p = validParams()
	p.FeeRate = -0.01
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for negative fee_rate")
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	p := validParams()
	p.StopLossPct = 0.05
	p.MacdFast = 30
	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "stop_loss_pct") || !strings.Contains(err.Error(), "macd_fast") {
		t.Fatalf("expected both violations reported, got %q", err.Error())
	}
}
