package indicator

import (
	"math"
	"testing"

	"crypto-trading-bot/internal/exchange"
)

func candlesFrom(closes []float64) []exchange.Candle {
	candles := make([]exchange.Candle, len(closes))
	for i, c := range closes {
		candles[i] = exchange.Candle{
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    10,
			CloseTime: int64(i+1) * 3600000,
		}
	}
	return candles
}

func TestSMASeries(t *testing.T) {
	candles := candlesFrom([]float64{1, 2, 3, 4, 5})
	sma := SMASeries(candles, 3)

	// warmup indexes hold zero
	if sma[0] != 0 || sma[1] != 0 {
		t.Errorf("warmup should be zero, got %v", sma[:2])
	}
	if sma[2] != 2 {
		t.Errorf("sma[2] = %f, want 2", sma[2])
	}
	if sma[3] != 3 {
		t.Errorf("sma[3] = %f, want 3", sma[3])
	}
	if sma[4] != 4 {
		t.Errorf("sma[4] = %f, want 4", sma[4])
	}
}

func TestSMASeriesShortWindow(t *testing.T) {
	candles := candlesFrom([]float64{1, 2})
	sma := SMASeries(candles, 5)
	for i, v := range sma {
		if v != 0 {
			t.Errorf("sma[%d] = %f, want 0 for a window shorter than the period", i, v)
		}
	}
}

func TestEMASeriesSeededWithSMA(t *testing.T) {
	candles := candlesFrom([]float64{2, 4, 6, 8})
	ema := EMASeries(candles, 3)

	if ema[0] != 0 || ema[1] != 0 {
		t.Errorf("warmup should be zero, got %v", ema[:2])
	}
	// seed is the SMA of the first three closes
	if ema[2] != 4 {
		t.Errorf("ema[2] = %f, want the SMA seed 4", ema[2])
	}
	// next value: 8*0.5 + 4*0.5
	if math.Abs(ema[3]-6) > 1e-9 {
		t.Errorf("ema[3] = %f, want 6", ema[3])
	}
}

func TestEMAConvergesTowardPrice(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		if i < 50 {
			closes[i] = 100
		} else {
			closes[i] = 200
		}
	}
	ema := EMASeries(candlesFrom(closes), 12)

	if math.Abs(ema[49]-100) > 1e-6 {
		t.Errorf("ema should sit at the flat price, got %f", ema[49])
	}
	if ema[99] < 195 {
		t.Errorf("ema should converge toward the new price, got %f", ema[99])
	}
	// shorter period reacts faster
	ema26 := EMASeries(candlesFrom(closes), 26)
	if ema[55] <= ema26[55] {
		t.Errorf("ema12 should lead ema26 on a rally: %f vs %f", ema[55], ema26[55])
	}
}

func TestMACDSeriesCrossesOnTrendChange(t *testing.T) {
	closes := make([]float64, 0, 100)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 40; i++ {
		closes = append(closes, 100+float64(i))
	}
	macd, signal := MACDSeries(candlesFrom(closes), 12, 26, 9)

	if len(macd) != len(closes) || len(signal) != len(closes) {
		t.Fatalf("series length mismatch: %d / %d / %d", len(macd), len(signal), len(closes))
	}
	// flat shelf: macd and signal both ~0
	if math.Abs(macd[59]) > 1e-9 {
		t.Errorf("flat macd should be zero, got %f", macd[59])
	}
	// into the rally the macd line leads the signal line
	if macd[70] <= signal[70] {
		t.Errorf("macd should lead its signal in a rally: %f vs %f", macd[70], signal[70])
	}
	if macd[70] <= 0 {
		t.Errorf("macd should be positive in a rally, got %f", macd[70])
	}
}

func TestMACDSeriesShortWindow(t *testing.T) {
	macd, signal := MACDSeries(candlesFrom([]float64{1, 2, 3}), 12, 26, 9)
	for i := range macd {
		if macd[i] != 0 || signal[i] != 0 {
			t.Fatalf("short window must stay zeroed at %d", i)
		}
	}
}

func TestOBVSeries(t *testing.T) {
	candles := candlesFrom([]float64{100, 101, 102, 101, 101})
	for i := range candles {
		candles[i].Volume = 10
	}
	obv := OBVSeries(candles)

	want := []float64{0, 10, 20, 10, 10}
	for i := range want {
		if obv[i] != want[i] {
			t.Errorf("obv[%d] = %f, want %f", i, obv[i], want[i])
		}
	}
}

func TestElderRaySeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	candles := candlesFrom(closes)
	bull, bear := ElderRaySeries(candles)

	// warmup indexes stay zero while the EMA13 is unseeded
	if bull[5] != 0 || bear[5] != 0 {
		t.Errorf("warmup should be zero, got %f / %f", bull[5], bear[5])
	}
	// flat series: high is ema+1, low is ema-1
	if math.Abs(bull[20]-1) > 1e-9 || math.Abs(bear[20]+1) > 1e-9 {
		t.Errorf("expected bull 1 / bear -1, got %f / %f", bull[20], bear[20])
	}
}

func TestWindowHigh(t *testing.T) {
	candles := candlesFrom([]float64{100, 130, 110})
	if got := WindowHigh(candles); got != 130 {
		t.Errorf("WindowHigh = %f, want 130", got)
	}
	if got := WindowHigh(nil); got != 0 {
		t.Errorf("empty window should be 0, got %f", got)
	}
}
