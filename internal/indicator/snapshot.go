package indicator

import (
	"time"

	"crypto-trading-bot/internal/exchange"
)

// Snapshot is the fixed-shape record of the signals extracted from one
// candle. It is produced once per decision cycle and never mutated.
type Snapshot struct {
	CandleTime time.Time `json:"candle_time"`
	Price      float64   `json:"price"`

	EMA12  float64 `json:"ema12"`
	EMA26  float64 `json:"ema26"`
	MACD   float64 `json:"macd"`
	Signal float64 `json:"signal"`

	EMAAbove     bool `json:"ema_above"`
	EMACrossUp   bool `json:"ema_cross_up"`
	EMACrossDown bool `json:"ema_cross_down"`
	MACDAbove    bool `json:"macd_above"`
	MACDCrossUp  bool `json:"macd_cross_up"`
	MACDCrossDown bool `json:"macd_cross_down"`
	GoldenCross  bool `json:"golden_cross"`
	DeathCross   bool `json:"death_cross"`

	OBVRising    bool `json:"obv_rising"`
	ElderRayBuy  bool `json:"elder_ray_buy"`
	ElderRaySell bool `json:"elder_ray_sell"`

	WindowHigh float64  `json:"window_high"`
	Patterns   Patterns `json:"patterns"`
}

// Options toggles the indicator families included in a snapshot
type Options struct {
	EnableEMA      bool
	EnableMACD     bool
	EnableOBV      bool
	EnableElderRay bool
}

// DefaultOptions enables the EMA and MACD families the primary signal needs
func DefaultOptions() Options {
	return Options{EnableEMA: true, EnableMACD: true}
}

// Engine computes Snapshots from a candle series
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// ComputeAll returns one Snapshot per candle. Crossover booleans compare
// each index against the previous one, so snapshots at the start of the
// series (inside the longest lookback) carry zeroed signals.
func (e *Engine) ComputeAll(candles []exchange.Candle) []Snapshot {
	snapshots := make([]Snapshot, len(candles))
	if len(candles) == 0 {
		return snapshots
	}

	ema12 := EMASeries(candles, 12)
	ema26 := EMASeries(candles, 26)
	macd, signal := MACDSeries(candles, 12, 26, 9)
	sma50 := SMASeries(candles, 50)
	sma200 := SMASeries(candles, 200)

	var obv []float64
	if e.opts.EnableOBV {
		obv = OBVSeries(candles)
	}

	var bull, bear []float64
	if e.opts.EnableElderRay {
		bull, bear = ElderRaySeries(candles)
	}

	windowHigh := WindowHigh(candles)

	for i := range candles {
		snap := Snapshot{
			CandleTime: candles[i].Time(),
			Price:      candles[i].Close,
			EMA12:      ema12[i],
			EMA26:      ema26[i],
			MACD:       macd[i],
			Signal:     signal[i],
			WindowHigh: windowHigh,
			Patterns:   detectPatterns(candles, i),
		}

		if e.opts.EnableEMA && ema26[i] > 0 {
			snap.EMAAbove = ema12[i] > ema26[i]
			if i > 0 && ema26[i-1] > 0 {
				prevAbove := ema12[i-1] > ema26[i-1]
				snap.EMACrossUp = snap.EMAAbove && !prevAbove
				snap.EMACrossDown = !snap.EMAAbove && prevAbove
			}
		}

		if e.opts.EnableMACD && signal[i] != 0 {
			snap.MACDAbove = macd[i] > signal[i]
			if i > 0 && signal[i-1] != 0 {
				prevAbove := macd[i-1] > signal[i-1]
				snap.MACDCrossUp = snap.MACDAbove && !prevAbove
				snap.MACDCrossDown = !snap.MACDAbove && prevAbove
			}
		}

		if sma200[i] > 0 {
			snap.GoldenCross = sma50[i] > sma200[i]
			snap.DeathCross = sma50[i] < sma200[i]
		} else if sma50[i] > 0 {
			// window too short for SMA200, fall back to SMA50 vs price
			// so short simulations still see a trend regime
			snap.GoldenCross = candles[i].Close > sma50[i]
			snap.DeathCross = candles[i].Close < sma50[i]
		}

		if e.opts.EnableOBV && i >= 5 {
			snap.OBVRising = obv[i] > obv[i-5]
		}

		if e.opts.EnableElderRay && i > 0 {
			snap.ElderRayBuy = bear[i] < 0 && bear[i] > bear[i-1] && snap.EMAAbove
			snap.ElderRaySell = bull[i] > 0 && bull[i] < bull[i-1] && !snap.EMAAbove
		}

		snapshots[i] = snap
	}

	return snapshots
}

// Compute returns the Snapshot for the most recent candle in the window
func (e *Engine) Compute(candles []exchange.Candle) Snapshot {
	snapshots := e.ComputeAll(candles)
	if len(snapshots) == 0 {
		return Snapshot{}
	}
	return snapshots[len(snapshots)-1]
}
