// Command backtest replays a historical candle window through the
// trading engine and prints the resulting performance report. Risk and
// signal settings come from the regular bot configuration; the market
// and window can be overridden on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/backtest"
	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/logging"
)

func main() {
	market := flag.String("market", "", "market to test, defaults to the configured market")
	granularity := flag.String("granularity", "", "candle interval, defaults to the configured interval")
	lookback := flag.Int("lookback", 0, "number of candles to replay, defaults to the configured lookback")
	balance := flag.Float64("balance", 1000, "starting quote balance")
	showTrades := flag.Bool("trades", false, "print every trade")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:     cfg.LoggingConfig.Level,
		Output:    "stderr",
		Component: "backtest",
	})

	btCfg := backtest.Config{
		Market:         cfg.MarketConfig.Market,
		Granularity:    cfg.MarketConfig.Granularity,
		Lookback:       cfg.MarketConfig.Lookback,
		InitialBalance: *balance,
		Risk:           cfg.RiskConfig,
		Signals:        cfg.SignalConfig,
	}
	if *market != "" {
		btCfg.Market = *market
	}
	if *granularity != "" {
		btCfg.Granularity = *granularity
	}
	if *lookback > 0 {
		btCfg.Lookback = *lookback
	}

	ex := exchange.NewClient(cfg.ExchangeConfig.APIKey, cfg.ExchangeConfig.SecretKey,
		cfg.ExchangeConfig.BaseURL)

	runner := backtest.NewRunner(ex, logger)
	result, trades, err := runner.Run(context.Background(), btCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest failed: %v\n", err)
		os.Exit(1)
	}

	printReport(result, trades, *showTrades)
}

func printReport(result *backtest.Result, trades []backtest.Trade, showTrades bool) {
	fmt.Printf("Backtest %s (%d candles, %s to %s)\n",
		result.Market, result.Candles,
		result.StartTime.Format("2006-01-02 15:04"),
		result.EndTime.Format("2006-01-02 15:04"))
	fmt.Printf("Balance:        %.2f -> %.2f\n", result.InitialBalance, result.FinalBalance)
	fmt.Printf("Trades:         %d (%d wins / %d losses, %.1f%% win rate)\n",
		result.TotalTrades, result.WinningTrades, result.LosingTrades, result.WinRate)
	fmt.Printf("PnL:            %.2f gross, %.2f fees, %.2f net\n",
		result.TotalPnL, result.TotalFees, result.NetPnL)
	fmt.Printf("Avg win/loss:   %.2f / %.2f\n", result.AverageWin, result.AverageLoss)
	fmt.Printf("Largest:        %.2f win, %.2f loss\n", result.LargestWin, result.LargestLoss)
	if result.ProfitFactor > 0 {
		fmt.Printf("Profit factor:  %.2f\n", result.ProfitFactor)
	}
	fmt.Printf("Max drawdown:   %.2f (%.2f%%)\n", result.MaxDrawdown, result.MaxDrawdownPercent)
	fmt.Printf("Avg duration:   %d minutes\n", result.AvgTradeDurationMinutes)
	if result.ClosedAtEnd {
		fmt.Println("Note: the final position was still open and is marked to the last close.")
	}

	if !showTrades {
		return
	}

	fmt.Println()
	for i, t := range trades {
		fmt.Printf("#%d  %s  %.4f -> %.4f  pnl %.2f (%.2f%%)  fees %.2f  %s\n",
			i+1, t.EntryTime.Format("2006-01-02 15:04"),
			t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPercent, t.Fees, t.ExitReason)
	}
}
