// Package engine turns an indicator snapshot and the current position
// state into the next trading action. Decide is a pure function: it
// performs no I/O and never mutates the state it is given, returning a
// Delta the caller commits after any order is confirmed.
package engine

import (
	"fmt"
	"math"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/indicator"
	"crypto-trading-bot/internal/position"
)

// OrderIntent describes the order a decision calls for. Amount is
// filled in by the caller from live balances: quote to spend for a BUY,
// base to sell for a SELL.
type OrderIntent struct {
	Market string          `json:"market"`
	Side   position.Action `json:"side"`
	Amount float64         `json:"amount"`
	Price  float64         `json:"price"`
	Reason string          `json:"reason"`
}

// Decision is the outcome of one processed candle.
type Decision struct {
	Action  position.Action
	Delta   position.Delta
	Reasons []string

	// ChangePct is the raw percentage change from the entry price,
	// Margin the same net of round-trip fees. Both are zero when flat.
	ChangePct float64
	Margin    float64
}

// Significant reports whether the decision commits a state change.
func (d Decision) Significant() bool {
	return d.Delta.Commit
}

// Decide evaluates one candle. The primary crossover signal is computed
// first, then the risk overrides are applied in a fixed precedence
// order; the first sell override to fire names the decision's reason.
//
// A snapshot for a candle the state has already processed returns WAIT
// with a no-op delta, so polling faster than the candle granularity
// never double-trades.
func Decide(snap indicator.Snapshot, state *position.State, risk config.RiskConfig, signals config.SignalConfig) Decision {
	if !state.LastCandle.IsZero() && snap.CandleTime.Equal(state.LastCandle) {
		return Decision{
			Action:  position.ActionWait,
			Reasons: []string{"candle already processed"},
		}
	}

	d := Decision{
		Action: position.ActionWait,
		Delta: position.Delta{
			NewCandle:  true,
			CandleTime: snap.CandleTime,
		},
	}

	inPosition := state.InPosition() && state.LastBuyPrice > 0
	trailingHigh := state.TrailingHigh
	if inPosition {
		trailingHigh = math.Max(trailingHigh, snap.Price)
		d.Delta.TrailingHigh = trailingHigh
		d.ChangePct = (snap.Price/state.LastBuyPrice - 1) * 100
		d.Margin = state.Margin(snap.Price, 2*risk.TakerFeePct)
	}

	// Primary crossover signal.
	switch {
	case buySignal(snap, signals) && state.LastAction != position.ActionBuy:
		if risk.BuyNearHighPct > 0 && snap.WindowHigh > 0 &&
			snap.Price > snap.WindowHigh*(1-risk.BuyNearHighPct/100) {
			d.Reasons = append(d.Reasons,
				fmt.Sprintf("buy skipped, price within %.2f%% of window high", risk.BuyNearHighPct))
		} else {
			d.Action = position.ActionBuy
			d.Reasons = append(d.Reasons, "buy signal: crossover confirmed")
		}
	case sellSignal(snap, signals) && state.LastAction == position.ActionBuy:
		if inPosition && !risk.AllowSellAtLoss && d.Margin < 0 {
			d.Reasons = append(d.Reasons, "sell at loss suppressed")
		} else {
			d.Action = position.ActionSell
			d.Reasons = append(d.Reasons, "sell signal: crossover confirmed")
		}
	}

	// Risk overrides, strongest first. Each may force a sell over
	// whatever the primary signal said. The failsafe, profit bank,
	// prevent-loss and trailing stop are explicit risk configuration
	// and fire even when AllowSellAtLoss is off; only the crossover
	// exit above and the reversal bank defer to it.
	if inPosition {
		switch {
		case risk.SellLowerPct != 0 && d.ChangePct < risk.SellLowerPct:
			d.Action = position.ActionSell
			d.Reasons = append(d.Reasons,
				fmt.Sprintf("Loss Failsafe Triggered (< %.2f%%)", risk.SellLowerPct))

		case risk.SellUpperPct != 0 && d.ChangePct > risk.SellUpperPct:
			d.Action = position.ActionSell
			d.Reasons = append(d.Reasons,
				fmt.Sprintf("Profit Bank Triggered (> %.2f%%)", risk.SellUpperPct))

		case risk.PreventLoss && d.Margin < risk.PreventLossTrigger && d.Margin > risk.PreventLossMargin:
			d.Action = position.ActionSell
			d.Reasons = append(d.Reasons,
				fmt.Sprintf("Prevent Loss Triggered (%.2f%% < %.2f%%)", d.Margin, risk.PreventLossTrigger))

		case trailingStopFired(snap.Price, state.LastBuyPrice, trailingHigh, risk):
			d.Action = position.ActionSell
			d.Reasons = append(d.Reasons, "Trailing Stop Loss Triggered")

		case risk.SellAtReversal && d.ChangePct > 0 && snap.Patterns.StrongBearishReversal():
			if !risk.AllowSellAtLoss && d.Margin < 0 {
				d.Reasons = append(d.Reasons, "reversal sell at loss suppressed")
			} else {
				d.Action = position.ActionSell
				d.Reasons = append(d.Reasons, "Candlestick Reversal Triggered")
			}
		}
	}

	if d.Action != position.ActionWait {
		fee := snap.Price * risk.TakerFeePct / 100
		d.Delta.Commit = true
		d.Delta.Action = d.Action
		d.Delta.Price = snap.Price
		d.Delta.Fee = fee
	}

	return d
}

// buySignal reports whether every enabled indicator family confirms an
// entry. At least one family must be enabled and confirming.
func buySignal(snap indicator.Snapshot, signals config.SignalConfig) bool {
	confirmed := false
	if signals.EnableEMA {
		if !snap.EMACrossUp || !snap.GoldenCross {
			return false
		}
		confirmed = true
	}
	if signals.EnableMACD {
		if !snap.MACDAbove {
			return false
		}
		confirmed = true
	}
	if signals.EnableOBV {
		if !snap.OBVRising {
			return false
		}
		confirmed = true
	}
	if signals.EnableElderRay {
		if !snap.ElderRayBuy {
			return false
		}
		confirmed = true
	}
	return confirmed
}

func sellSignal(snap indicator.Snapshot, signals config.SignalConfig) bool {
	confirmed := false
	if signals.EnableEMA {
		if !snap.EMACrossDown {
			return false
		}
		confirmed = true
	}
	if signals.EnableMACD {
		if snap.MACDAbove {
			return false
		}
		confirmed = true
	}
	if signals.EnableElderRay && snap.ElderRaySell {
		confirmed = true
	}
	return confirmed
}

// trailingStopFired checks the trailing stop: armed once the peak
// margin since entry clears the (possibly dynamic) trigger, fired when
// the price retraces the effective stop percentage below the high.
func trailingStopFired(price, buyPrice, trailingHigh float64, risk config.RiskConfig) bool {
	if risk.TrailingStopLossPct <= 0 || buyPrice <= 0 || trailingHigh <= 0 {
		return false
	}

	peakMargin := (trailingHigh/buyPrice - 1) * 100
	trigger, stop := EffectiveStops(peakMargin, risk)
	if trigger > 0 && peakMargin < trigger {
		return false
	}

	return price <= trailingHigh*(1-stop/100)
}
