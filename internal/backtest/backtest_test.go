package backtest

import (
	"context"
	"testing"
	"time"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/logging"
)

func testCandles(closes []float64) []exchange.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]exchange.Candle, len(closes))
	open := closes[0]
	for i, c := range closes {
		openTime := start.Add(time.Duration(i) * time.Hour)
		candles[i] = exchange.Candle{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    10,
			CloseTime: openTime.Add(time.Hour).UnixMilli(),
		}
		open = c
	}
	return candles
}

func flatRallyDecline() []float64 {
	closes := make([]float64, 0, 100)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 100+1.5*float64(i))
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 130-1.5*float64(i))
	}
	return closes
}

func testConfig() Config {
	return Config{
		Market:         "BTCUSDT",
		Granularity:    "1h",
		Lookback:       100,
		InitialBalance: 1000,
		Risk: config.RiskConfig{
			AllowSellAtLoss: true,
			TakerFeePct:     0.5,
		},
		Signals: config.SignalConfig{
			EnableEMA:  true,
			EnableMACD: true,
		},
	}
}

func TestReplayRoundTrip(t *testing.T) {
	candles := testCandles(flatRallyDecline())
	result, trades := Replay(candles, testConfig())

	if result.TotalTrades != 1 {
		t.Fatalf("expected one trade, got %d", result.TotalTrades)
	}
	trade := trades[0]
	if trade.EntryPrice != 101.5 {
		t.Errorf("expected entry at 101.5, got %f", trade.EntryPrice)
	}
	if trade.ExitPrice != 110.5 {
		t.Errorf("expected exit at 110.5, got %f", trade.ExitPrice)
	}
	if trade.PnL <= 0 {
		t.Errorf("rally round trip should profit, got %f", trade.PnL)
	}
	if trade.Fees <= 0 {
		t.Errorf("fees should be charged, got %f", trade.Fees)
	}
	if trade.DurationMinutes <= 0 {
		t.Errorf("trade duration should be positive, got %d", trade.DurationMinutes)
	}

	if result.WinningTrades != 1 || result.LosingTrades != 0 {
		t.Errorf("expected 1 win / 0 losses, got %d / %d",
			result.WinningTrades, result.LosingTrades)
	}
	if result.WinRate != 100 {
		t.Errorf("expected 100%% win rate, got %f", result.WinRate)
	}
	if result.FinalBalance <= result.InitialBalance {
		t.Errorf("final balance should grow: %f -> %f",
			result.InitialBalance, result.FinalBalance)
	}
	if result.ClosedAtEnd {
		t.Error("position exited by signal, not at end of series")
	}
}

func TestReplayMarksOpenPositionAtEnd(t *testing.T) {
	closes := make([]float64, 0, 80)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 100+1.5*float64(i))
	}

	result, trades := Replay(testCandles(closes), testConfig())

	if result.TotalTrades != 1 {
		t.Fatalf("expected one trade, got %d", result.TotalTrades)
	}
	if !result.ClosedAtEnd {
		t.Error("position still open should be marked to the final close")
	}
	if trades[0].ExitReason != "end of series" {
		t.Errorf("unexpected exit reason %q", trades[0].ExitReason)
	}
	if trades[0].ExitPrice != 130 {
		t.Errorf("expected mark at final close 130, got %f", trades[0].ExitPrice)
	}
}

func TestReplayLossFailsafe(t *testing.T) {
	closes := make([]float64, 0, 80)
	for i := 0; i < 60; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 5; i++ {
		closes = append(closes, 100+1.5*float64(i))
	}
	for i := 1; i <= 15; i++ {
		closes = append(closes, 107.5-1.5*float64(i))
	}

	cfg := testConfig()
	cfg.Risk.SellLowerPct = -2

	result, trades := Replay(testCandles(closes), cfg)

	if result.TotalTrades != 1 {
		t.Fatalf("expected one trade, got %d", result.TotalTrades)
	}
	if trades[0].PnL >= 0 {
		t.Errorf("failsafe exit should lose, got %f", trades[0].PnL)
	}
	if result.LosingTrades != 1 {
		t.Errorf("expected one losing trade, got %d", result.LosingTrades)
	}
	if result.MaxDrawdown <= 0 {
		t.Errorf("a losing trade should register drawdown, got %f", result.MaxDrawdown)
	}
	if result.ProfitFactor != 0 {
		t.Errorf("no wins means zero profit factor, got %f", result.ProfitFactor)
	}
	if result.FinalBalance >= result.InitialBalance {
		t.Errorf("balance should shrink: %f -> %f",
			result.InitialBalance, result.FinalBalance)
	}
}

func TestReplayFlatSeriesNoTrades(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100
	}

	result, trades := Replay(testCandles(closes), testConfig())

	if len(trades) != 0 {
		t.Fatalf("flat series should trade nothing, got %d trades", len(trades))
	}
	if result.FinalBalance != result.InitialBalance {
		t.Errorf("balance must be untouched, got %f", result.FinalBalance)
	}
}

func TestReplayDeterministic(t *testing.T) {
	candles := testCandles(flatRallyDecline())
	cfg := testConfig()

	first, firstTrades := Replay(candles, cfg)
	second, secondTrades := Replay(candles, cfg)

	if first.NetPnL != second.NetPnL || first.TotalTrades != second.TotalTrades {
		t.Errorf("identical replays diverged: %f/%d vs %f/%d",
			first.NetPnL, first.TotalTrades, second.NetPnL, second.TotalTrades)
	}
	if len(firstTrades) != len(secondTrades) {
		t.Fatalf("trade counts diverged: %d vs %d", len(firstTrades), len(secondTrades))
	}
	for i := range firstTrades {
		if firstTrades[i] != secondTrades[i] {
			t.Errorf("trade %d diverged: %+v vs %+v", i, firstTrades[i], secondTrades[i])
		}
	}
}

func TestRunnerInsufficientHistory(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetCandles("BTCUSDT", testCandles([]float64{100, 101, 102}))

	runner := NewRunner(mock, logging.New(&logging.Config{Level: "ERROR"}))
	if _, _, err := runner.Run(context.Background(), testConfig()); err == nil {
		t.Fatal("expected an error for a short candle window")
	}
}

func TestRunnerFetchesFromExchange(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetCandles("BTCUSDT", testCandles(flatRallyDecline()))

	runner := NewRunner(mock, logging.New(&logging.Config{Level: "ERROR"}))
	result, trades, err := runner.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TotalTrades != 1 || len(trades) != 1 {
		t.Fatalf("expected one trade, got %d", result.TotalTrades)
	}
}
