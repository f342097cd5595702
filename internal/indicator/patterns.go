package indicator

import (
	"math"

	"crypto-trading-bot/internal/exchange"
)

// Candlestick pattern detection over one, two or three candles.
// All functions take the most recent candles oldest-first.

// Patterns holds the candlestick pattern booleans for one candle
type Patterns struct {
	Hammer             bool `json:"hammer"`
	InvertedHammer     bool `json:"inverted_hammer"`
	HangingMan         bool `json:"hanging_man"`
	ShootingStar       bool `json:"shooting_star"`
	ThreeWhiteSoldiers bool `json:"three_white_soldiers"`
	ThreeBlackCrows    bool `json:"three_black_crows"`
	MorningStar        bool `json:"morning_star"`
	EveningStar        bool `json:"evening_star"`
	ThreeLineStrike    bool `json:"three_line_strike"`
	AbandonedBaby      bool `json:"abandoned_baby"`
	MorningDojiStar    bool `json:"morning_doji_star"`
	EveningDojiStar    bool `json:"evening_doji_star"`
	TwoBlackGapping    bool `json:"two_black_gapping"`
}

// StrongBearishReversal reports whether any of the reliable bearish
// reversal patterns fired. The reversal-bank override keys off this.
func (p Patterns) StrongBearishReversal() bool {
	return p.ThreeBlackCrows || p.EveningStar || p.EveningDojiStar || p.TwoBlackGapping
}

// PatternHit names a detected pattern with its reliability label.
type PatternHit struct {
	Name     string `json:"name"`
	Strength string `json:"strength"`
}

// Detected lists every pattern that fired on this candle, with the
// conventional reliability label for each.
func (p Patterns) Detected() []PatternHit {
	var hits []PatternHit
	add := func(on bool, name, strength string) {
		if on {
			hits = append(hits, PatternHit{Name: name, Strength: strength})
		}
	}
	add(p.Hammer, "hammer", "weak")
	add(p.InvertedHammer, "inverted hammer", "weak")
	add(p.HangingMan, "hanging man", "weak")
	add(p.ShootingStar, "shooting star", "reliable")
	add(p.ThreeWhiteSoldiers, "three white soldiers", "strong")
	add(p.ThreeBlackCrows, "three black crows", "strong")
	add(p.MorningStar, "morning star", "strong")
	add(p.EveningStar, "evening star", "strong")
	add(p.ThreeLineStrike, "three line strike", "reliable")
	add(p.AbandonedBaby, "abandoned baby", "reliable")
	add(p.MorningDojiStar, "morning doji star", "reliable")
	add(p.EveningDojiStar, "evening doji star", "reliable")
	add(p.TwoBlackGapping, "two black gapping", "reliable")
	return hits
}

// detectPatterns computes the pattern booleans for the candle at index i
func detectPatterns(candles []exchange.Candle, i int) Patterns {
	var p Patterns

	c := candles[i]
	p.Hammer = isHammer(c)
	p.InvertedHammer = isInvertedHammer(c)

	if i >= 1 {
		prev := candles[i-1]
		p.HangingMan = isHammer(c) && prev.Close > prev.Open && c.Close < prev.Close
		p.ShootingStar = isInvertedHammer(c) && prev.Close > prev.Open && c.Close < prev.Close
	}

	if i >= 2 {
		c1, c2, c3 := candles[i-2], candles[i-1], candles[i]
		p.ThreeWhiteSoldiers = isThreeWhiteSoldiers(c1, c2, c3)
		p.ThreeBlackCrows = isThreeBlackCrows(c1, c2, c3)
		p.MorningStar = isMorningStar(c1, c2, c3, false)
		p.EveningStar = isEveningStar(c1, c2, c3, false)
		p.MorningDojiStar = isMorningStar(c1, c2, c3, true)
		p.EveningDojiStar = isEveningStar(c1, c2, c3, true)
		p.AbandonedBaby = isAbandonedBaby(c1, c2, c3)
		p.TwoBlackGapping = isTwoBlackGapping(c1, c2, c3)
	}

	if i >= 3 {
		p.ThreeLineStrike = isThreeLineStrike(candles[i-3], candles[i-2], candles[i-1], candles[i])
	}

	return p
}

func body(c exchange.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func isBullish(c exchange.Candle) bool {
	return c.Close > c.Open
}

func isBearish(c exchange.Candle) bool {
	return c.Close < c.Open
}

func isDoji(c exchange.Candle) bool {
	spread := c.High - c.Low
	if spread == 0 {
		return false
	}
	return body(c)/spread < 0.10
}

// isHammer checks for a small body at the top with a long lower wick
func isHammer(c exchange.Candle) bool {
	spread := c.High - c.Low
	if spread == 0 {
		return false
	}

	lowerWick := math.Min(c.Open, c.Close) - c.Low
	upperWick := c.High - math.Max(c.Open, c.Close)

	return lowerWick >= 2*body(c) && upperWick <= body(c) && body(c)/spread < 0.4
}

// isInvertedHammer checks for a small body at the bottom with a long upper wick
func isInvertedHammer(c exchange.Candle) bool {
	spread := c.High - c.Low
	if spread == 0 {
		return false
	}

	lowerWick := math.Min(c.Open, c.Close) - c.Low
	upperWick := c.High - math.Max(c.Open, c.Close)

	return upperWick >= 2*body(c) && lowerWick <= body(c) && body(c)/spread < 0.4
}

func isThreeWhiteSoldiers(c1, c2, c3 exchange.Candle) bool {
	if !isBullish(c1) || !isBullish(c2) || !isBullish(c3) {
		return false
	}

	// each opens within the prior body and closes higher
	if c2.Open < c1.Open || c2.Open > c1.Close || c2.Close <= c1.Close {
		return false
	}
	if c3.Open < c2.Open || c3.Open > c2.Close || c3.Close <= c2.Close {
		return false
	}

	return true
}

func isThreeBlackCrows(c1, c2, c3 exchange.Candle) bool {
	if !isBearish(c1) || !isBearish(c2) || !isBearish(c3) {
		return false
	}

	// each opens within the prior body and closes lower
	if c2.Open > c1.Open || c2.Open < c1.Close || c2.Close >= c1.Close {
		return false
	}
	if c3.Open > c2.Open || c3.Open < c2.Close || c3.Close >= c2.Close {
		return false
	}

	return true
}

func isMorningStar(c1, c2, c3 exchange.Candle, dojiMiddle bool) bool {
	if !isBearish(c1) || !isBullish(c3) {
		return false
	}
	if dojiMiddle && !isDoji(c2) {
		return false
	}
	if !dojiMiddle && body(c2) >= body(c1)*0.3 {
		return false
	}

	// middle gaps below the first body, third closes past its midpoint
	midpoint := (c1.Open + c1.Close) / 2
	return math.Max(c2.Open, c2.Close) < c1.Close && c3.Close > midpoint
}

func isEveningStar(c1, c2, c3 exchange.Candle, dojiMiddle bool) bool {
	if !isBullish(c1) || !isBearish(c3) {
		return false
	}
	if dojiMiddle && !isDoji(c2) {
		return false
	}
	if !dojiMiddle && body(c2) >= body(c1)*0.3 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return math.Min(c2.Open, c2.Close) > c1.Close && c3.Close < midpoint
}

func isAbandonedBaby(c1, c2, c3 exchange.Candle) bool {
	// bullish variant: down candle, gapped-down doji, gapped-up up candle
	if !isBearish(c1) || !isDoji(c2) || !isBullish(c3) {
		return false
	}
	return c2.High < c1.Low && c3.Low > c2.High
}

func isThreeLineStrike(c1, c2, c3, c4 exchange.Candle) bool {
	// three falling bearish candles then one bullish candle engulfing all three
	if !isBearish(c1) || !isBearish(c2) || !isBearish(c3) || !isBullish(c4) {
		return false
	}
	if c2.Close >= c1.Close || c3.Close >= c2.Close {
		return false
	}
	return c4.Open <= c3.Close && c4.Close >= c1.Open
}

func isTwoBlackGapping(c1, c2, c3 exchange.Candle) bool {
	// gap down after an up candle, then two bearish candles
	if !isBullish(c1) || !isBearish(c2) || !isBearish(c3) {
		return false
	}
	return c2.High < c1.Low && c3.Close < c2.Close
}
