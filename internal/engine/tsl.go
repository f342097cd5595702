package engine

import (
	"crypto-trading-bot/config"
)

// EffectiveStops returns the trailing-stop trigger and stop percentages
// in effect at the given realized margin. With dynamic scaling off the
// configured values pass through unchanged. With it on, both thresholds
// ratchet up by their multipliers each time the margin clears the
// current trigger, and the stop is capped at TSLMaxPct.
//
// This is a pure function of (margin, config): the effective thresholds
// are always recomputed from scratch rather than mutated incrementally,
// so repeated calls cannot drift.
func EffectiveStops(margin float64, risk config.RiskConfig) (trigger, stop float64) {
	trigger = risk.TrailingStopTriggerPct
	stop = risk.TrailingStopLossPct

	if !risk.DynamicTSL || trigger <= 0 {
		return trigger, stop
	}

	for margin >= trigger*risk.TSLTriggerMultiplier {
		next := trigger * risk.TSLTriggerMultiplier
		if next <= trigger {
			// multiplier <= 1 would never terminate
			break
		}
		trigger = next
		stop *= risk.TSLMultiplier
		if risk.TSLMaxPct > 0 && stop > risk.TSLMaxPct {
			stop = risk.TSLMaxPct
		}
	}

	return trigger, stop
}
