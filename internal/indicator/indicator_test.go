package indicator

import (
	"math"
	"testing"

	"tradeflow/internal/model"
)

func makeBars(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Open: c * 0.999, High: c * 1.001, Low: c * 0.998, Close: c, Volume: 10, Timestamp: int64(1700000000 + i*300)}
	}
	return bars
}

func testConfig() Config {
	return Config{MacdFast: 12, MacdSlow: 26, MacdSignal: 9, MaFastPeriod: 20, MaSlowPeriod: 60, VolWindow: 20}
}

func TestMinBars(t *testing.T) {
	e := NewEngine(testConfig())
	if got := e.MinBars(); got != 60 {
		t.Fatalf("MinBars = %d, want 60", got)
	}
	e2 := NewEngine(Config{MacdFast: 12, MacdSlow: 26, MacdSignal: 9, MaFastPeriod: 5, MaSlowPeriod: 10, VolWindow: 20})
	if got := e2.MinBars(); got != 35 {
		t.Fatalf("MinBars = %d, want 35", got)
	}
}

func TestComputeInsufficientData(t *testing.T) {
	e := NewEngine(testConfig())
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	_, err := e.Compute(makeBars(closes))
	if err != model.ErrInsufficientData {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestComputeUptrend(t *testing.T) {
	e := NewEngine(testConfig())
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	snaps, err := e.Compute(makeBars(closes))
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 120 {
		t.Fatalf("len = %d, want 120", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if last.Macd <= 0 {
		t.Errorf("uptrend macd = %f, want > 0", last.Macd)
	}
	if last.MaFast <= last.MaSlow {
		t.Errorf("uptrend maFast %f <= maSlow %f", last.MaFast, last.MaSlow)
	}
	if closes[len(closes)-1] <= last.MaFast {
		t.Errorf("uptrend close %f <= maFast %f", closes[len(closes)-1], last.MaFast)
	}
}

func TestVolatilityNonNegative(t *testing.T) {
	e := NewEngine(testConfig())
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/3)
	}
	snaps, err := e.Compute(makeBars(closes))
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range snaps {
		if s.Volatility < 0 || math.IsNaN(s.Volatility) {
			t.Fatalf("snap[%d].Volatility = %f", i, s.Volatility)
		}
	}
	if MeanVolatility(snaps) <= 0 {
		t.Errorf("MeanVolatility = %f, want > 0", MeanVolatility(snaps))
	}
}

func TestFlatSeriesZeroVolatility(t *testing.T) {
	e := NewEngine(testConfig())
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 250
	}
	snaps, err := e.Compute(makeBars(closes))
	if err != nil {
		t.Fatal(err)
	}
	last := snaps[len(snaps)-1]
	if last.Volatility != 0 {
		t.Errorf("flat Volatility = %f, want 0", last.Volatility)
	}
	if math.Abs(last.Macd) > 1e-9 {
		t.Errorf("flat macd = %f, want 0", last.Macd)
	}
}
