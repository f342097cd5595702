package engine

import (
	"testing"
	"time"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/indicator"
	"crypto-trading-bot/internal/position"
)

func defaultSignals() config.SignalConfig {
	return config.SignalConfig{EnableEMA: true, EnableMACD: true}
}

func defaultRisk() config.RiskConfig {
	return config.RiskConfig{
		AllowSellAtLoss: true,
		TakerFeePct:     0.5,
	}
}

func candleTime(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * 5 * time.Minute)
}

func buySnapshot(n int, price float64) indicator.Snapshot {
	return indicator.Snapshot{
		CandleTime:  candleTime(n),
		Price:       price,
		EMACrossUp:  true,
		MACDAbove:   true,
		GoldenCross: true,
	}
}

func TestDecideBuyOnConfirmedCrossover(t *testing.T) {
	state := position.NewState("BTCUSDT")
	d := Decide(buySnapshot(1, 100), state, defaultRisk(), defaultSignals())

	if d.Action != position.ActionBuy {
		t.Fatalf("expected BUY, got %s (reasons: %v)", d.Action, d.Reasons)
	}
	if !d.Significant() {
		t.Fatal("buy decision should commit a state change")
	}
	if d.Delta.Price != 100 {
		t.Errorf("expected delta price 100, got %f", d.Delta.Price)
	}
}

func TestDecideNoBuyWhileInPosition(t *testing.T) {
	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 100

	d := Decide(buySnapshot(1, 101), state, defaultRisk(), defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("expected WAIT while already in position, got %s", d.Action)
	}
}

func TestDecideNoBuyWithoutGoldenCross(t *testing.T) {
	snap := buySnapshot(1, 100)
	snap.GoldenCross = false

	d := Decide(snap, position.NewState("BTCUSDT"), defaultRisk(), defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("expected WAIT without golden cross, got %s", d.Action)
	}
}

func TestDecideSellOnCrossDown(t *testing.T) {
	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 110

	snap := indicator.Snapshot{
		CandleTime:   candleTime(2),
		Price:        108,
		EMACrossDown: true,
		MACDAbove:    false,
	}
	d := Decide(snap, state, defaultRisk(), defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("expected SELL on cross down, got %s (reasons: %v)", d.Action, d.Reasons)
	}
}

func TestDecideSameCandleIsNoOp(t *testing.T) {
	state := position.NewState("BTCUSDT")

	snap := buySnapshot(1, 100)
	d := Decide(snap, state, defaultRisk(), defaultSignals())
	if d.Action != position.ActionBuy {
		t.Fatalf("first decision should BUY, got %s", d.Action)
	}
	state.Apply(d.Delta)
	if state.LastAction != position.ActionBuy || state.LastBuyPrice != 100 {
		t.Fatalf("apply did not commit the buy: %+v", state)
	}

	before := *state
	d2 := Decide(snap, state, defaultRisk(), defaultSignals())
	if d2.Action != position.ActionWait {
		t.Fatalf("revisiting the same candle should WAIT, got %s", d2.Action)
	}
	if d2.Delta.NewCandle {
		t.Fatal("same-candle delta must be a no-op")
	}
	state.Apply(d2.Delta)
	if state.LastBuyPrice != before.LastBuyPrice || state.BuyCount != before.BuyCount ||
		state.LastCandle != before.LastCandle {
		t.Fatalf("same-candle apply mutated state: before=%+v after=%+v", before, state)
	}
}

func TestDecideLossFailsafeOverridesSignal(t *testing.T) {
	risk := defaultRisk()
	risk.SellLowerPct = -10

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 100

	// All bullish signals set; the failsafe must still win.
	snap := buySnapshot(3, 85)
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("expected loss failsafe SELL, got %s (reasons: %v)", d.Action, d.Reasons)
	}
	if !containsPrefix(d.Reasons, "Loss Failsafe Triggered") {
		t.Errorf("expected loss failsafe reason, got %v", d.Reasons)
	}
}

func TestDecideProfitBank(t *testing.T) {
	risk := defaultRisk()
	risk.SellUpperPct = 5

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 100

	snap := indicator.Snapshot{CandleTime: candleTime(4), Price: 107}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("expected profit bank SELL, got %s", d.Action)
	}
	if !containsPrefix(d.Reasons, "Profit Bank Triggered") {
		t.Errorf("expected profit bank reason, got %v", d.Reasons)
	}
}

func TestDecidePreventLoss(t *testing.T) {
	risk := defaultRisk()
	risk.PreventLoss = true
	risk.PreventLossTrigger = 1.0
	risk.PreventLossMargin = 0.1

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 103

	// Margin net of 1% round-trip fees: (101.5/100-1)*100 - 1 = 0.5,
	// inside the (0.1, 1.0) window.
	snap := indicator.Snapshot{CandleTime: candleTime(5), Price: 101.5}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("expected prevent-loss SELL, got %s (margin %f)", d.Action, d.Margin)
	}
}

func TestDecideTrailingStop(t *testing.T) {
	risk := defaultRisk()
	risk.TrailingStopLossPct = 5
	risk.TrailingStopTriggerPct = 20

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 130

	// 30% peak margin arms the 20% trigger; 123 is 5.4% below the
	// high, past the 5% stop.
	snap := indicator.Snapshot{CandleTime: candleTime(6), Price: 123}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("expected trailing stop SELL, got %s (reasons: %v)", d.Action, d.Reasons)
	}
	if !containsPrefix(d.Reasons, "Trailing Stop Loss Triggered") {
		t.Errorf("expected trailing stop reason, got %v", d.Reasons)
	}
}

func TestDecideTrailingStopNotArmedBelowTrigger(t *testing.T) {
	risk := defaultRisk()
	risk.TrailingStopLossPct = 5
	risk.TrailingStopTriggerPct = 20

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 110 // 10% peak margin, below the trigger

	snap := indicator.Snapshot{CandleTime: candleTime(7), Price: 104}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("trailing stop should not be armed, got %s", d.Action)
	}
}

func TestDecideTrailingHighAdvancesOnWait(t *testing.T) {
	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 105

	snap := indicator.Snapshot{CandleTime: candleTime(8), Price: 112}
	d := Decide(snap, state, defaultRisk(), defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("expected WAIT, got %s", d.Action)
	}
	if d.Delta.TrailingHigh != 112 {
		t.Errorf("expected trailing high 112, got %f", d.Delta.TrailingHigh)
	}
	state.Apply(d.Delta)
	if state.TrailingHigh != 112 {
		t.Errorf("trailing high not applied: %f", state.TrailingHigh)
	}
	if state.LastAction != position.ActionBuy {
		t.Errorf("WAIT must not change last action, got %s", state.LastAction)
	}
}

func TestDecideReversalBank(t *testing.T) {
	risk := defaultRisk()
	risk.SellAtReversal = true

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 110

	snap := indicator.Snapshot{
		CandleTime: candleTime(9),
		Price:      108,
		Patterns:   indicator.Patterns{ThreeBlackCrows: true},
	}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("expected reversal SELL, got %s (reasons: %v)", d.Action, d.Reasons)
	}
}

func TestDecideReversalIgnoredAtLoss(t *testing.T) {
	risk := defaultRisk()
	risk.SellAtReversal = true

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 100

	snap := indicator.Snapshot{
		CandleTime: candleTime(10),
		Price:      95,
		Patterns:   indicator.Patterns{EveningStar: true},
	}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("reversal bank should only fire while profitable, got %s", d.Action)
	}
}

func TestDecideSellAtLossSuppressed(t *testing.T) {
	risk := defaultRisk()
	risk.AllowSellAtLoss = false

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 100

	snap := indicator.Snapshot{
		CandleTime:   candleTime(11),
		Price:        95,
		EMACrossDown: true,
	}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("expected loss sell to be suppressed, got %s", d.Action)
	}
	if !contains(d.Reasons, "sell at loss suppressed") {
		t.Errorf("expected suppression reason, got %v", d.Reasons)
	}
}

func TestDecideLossFailsafeFiresWithSellAtLossOff(t *testing.T) {
	risk := defaultRisk()
	risk.AllowSellAtLoss = false
	risk.SellLowerPct = -10

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 100

	snap := indicator.Snapshot{CandleTime: candleTime(13), Price: 85}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("loss failsafe must fire regardless of allow_sell_at_loss, got %s (reasons: %v)",
			d.Action, d.Reasons)
	}
	if !containsPrefix(d.Reasons, "Loss Failsafe Triggered") {
		t.Errorf("expected loss failsafe reason, got %v", d.Reasons)
	}
}

func TestDecideTrailingStopFiresWithSellAtLossOff(t *testing.T) {
	risk := defaultRisk()
	risk.AllowSellAtLoss = false
	risk.TrailingStopLossPct = 15
	risk.TrailingStopTriggerPct = 10

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 115

	// Retraced through the entry price: the stop fires at a loss.
	snap := indicator.Snapshot{CandleTime: candleTime(14), Price: 97}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionSell {
		t.Fatalf("trailing stop must fire regardless of allow_sell_at_loss, got %s (reasons: %v)",
			d.Action, d.Reasons)
	}
}

func TestDecideReversalDefersToSellAtLoss(t *testing.T) {
	risk := defaultRisk()
	risk.AllowSellAtLoss = false
	risk.SellAtReversal = true

	state := position.NewState("BTCUSDT")
	state.LastAction = position.ActionBuy
	state.LastBuyPrice = 100
	state.TrailingHigh = 101

	// Raw change positive but under round-trip fees: a loss once sold.
	snap := indicator.Snapshot{
		CandleTime: candleTime(15),
		Price:      100.5,
		Patterns:   indicator.Patterns{ThreeBlackCrows: true},
	}
	d := Decide(snap, state, risk, defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("reversal bank should honor allow_sell_at_loss, got %s", d.Action)
	}
	if !contains(d.Reasons, "reversal sell at loss suppressed") {
		t.Errorf("expected suppression reason, got %v", d.Reasons)
	}
}

func TestDecideBuyNearHighSkipped(t *testing.T) {
	risk := defaultRisk()
	risk.BuyNearHighPct = 3

	snap := buySnapshot(12, 99.5)
	snap.WindowHigh = 100 // price within 3% of the window high

	d := Decide(snap, position.NewState("BTCUSDT"), risk, defaultSignals())
	if d.Action != position.ActionWait {
		t.Fatalf("expected buy near high to be skipped, got %s", d.Action)
	}
}

func TestDecideGoldenCrossScenario(t *testing.T) {
	// 300-bar style scenario compressed to the two bars that matter:
	// crossover fires at one bar, indicators hold at the next.
	risk := defaultRisk()
	signals := defaultSignals()
	state := position.NewState("BTCUSDT")

	cross := buySnapshot(150, 45000)
	d := Decide(cross, state, risk, signals)
	if d.Action != position.ActionBuy {
		t.Fatalf("expected BUY at crossover bar, got %s", d.Action)
	}
	state.Apply(d.Delta)
	if state.LastBuyPrice != 45000 {
		t.Fatalf("expected last buy price 45000, got %f", state.LastBuyPrice)
	}

	hold := cross
	hold.CandleTime = candleTime(151)
	hold.EMACrossUp = false // crossover is an event, not a level
	hold.EMAAbove = true
	hold.Price = 45100
	d2 := Decide(hold, state, risk, signals)
	if d2.Action != position.ActionWait {
		t.Fatalf("expected WAIT at the next bar, got %s", d2.Action)
	}
	state.Apply(d2.Delta)
	if state.LastBuyPrice != 45000 {
		t.Errorf("WAIT mutated last buy price: %f", state.LastBuyPrice)
	}
}

func containsPrefix(reasons []string, prefix string) bool {
	for _, r := range reasons {
		if len(r) >= len(prefix) && r[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func contains(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
