package indicator

import (
	"crypto-trading-bot/internal/exchange"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMASeries calculates a Simple Moving Average for every index.
// Indexes with fewer than period candles behind them hold 0.
func SMASeries(candles []exchange.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	sum := 0.0
	for i, c := range candles {
		sum += c.Close
		if i >= period {
			sum -= candles[i-period].Close
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out
}

// EMASeries calculates an Exponential Moving Average for every index,
// seeded with the SMA of the first period closes.
func EMASeries(candles []exchange.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}

	return out
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDSeries calculates the MACD line and its signal line for every index.
// The signal line is an EMA over the MACD line itself, so crossovers are
// detectable by comparing adjacent indexes.
func MACDSeries(candles []exchange.Candle, fastPeriod, slowPeriod, signalPeriod int) (macd, signal []float64) {
	macd = make([]float64, len(candles))
	signal = make([]float64, len(candles))
	if len(candles) < slowPeriod+signalPeriod {
		return macd, signal
	}

	fast := EMASeries(candles, fastPeriod)
	slow := EMASeries(candles, slowPeriod)

	for i := slowPeriod - 1; i < len(candles); i++ {
		macd[i] = fast[i] - slow[i]
	}

	// seed the signal with the SMA of the first signalPeriod MACD values
	start := slowPeriod - 1
	sum := 0.0
	for i := start; i < start+signalPeriod; i++ {
		sum += macd[i]
	}
	sig := sum / float64(signalPeriod)
	signal[start+signalPeriod-1] = sig

	multiplier := 2.0 / float64(signalPeriod+1)
	for i := start + signalPeriod; i < len(candles); i++ {
		sig = (macd[i] * multiplier) + (sig * (1 - multiplier))
		signal[i] = sig
	}

	return macd, signal
}

// ============================================================================
// OBV (On-Balance Volume)
// ============================================================================

// OBVSeries calculates the On-Balance Volume for every index
func OBVSeries(candles []exchange.Candle) []float64 {
	out := make([]float64, len(candles))
	if len(candles) == 0 {
		return out
	}

	obv := 0.0
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			obv += candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			obv -= candles[i].Volume
		}
		out[i] = obv
	}

	return out
}

// ============================================================================
// ELDER-RAY
// ============================================================================

// ElderRaySeries calculates bull power and bear power against an EMA13
func ElderRaySeries(candles []exchange.Candle) (bull, bear []float64) {
	bull = make([]float64, len(candles))
	bear = make([]float64, len(candles))

	ema13 := EMASeries(candles, 13)
	for i := range candles {
		if ema13[i] == 0 {
			continue
		}
		bull[i] = candles[i].High - ema13[i]
		bear[i] = candles[i].Low - ema13[i]
	}

	return bull, bear
}

// WindowHigh returns the highest close over the whole window,
// used by the buy-near-high filter.
func WindowHigh(candles []exchange.Candle) float64 {
	high := 0.0
	for _, c := range candles {
		if c.Close > high {
			high = c.Close
		}
	}
	return high
}
