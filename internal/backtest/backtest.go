// Package backtest replays a historical candle series through the same
// decision engine the live bot uses, so a strategy configuration can be
// evaluated before any money touches it. The replay is deterministic:
// identical candles and configuration always produce identical trades.
package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/engine"
	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/indicator"
	"crypto-trading-bot/internal/logging"
	"crypto-trading-bot/internal/position"
)

// Config holds backtest parameters.
type Config struct {
	Market         string
	Granularity    string
	Lookback       int
	InitialBalance float64
	Risk           config.RiskConfig
	Signals        config.SignalConfig
}

// Trade is one completed entry/exit pair from the replay.
type Trade struct {
	EntryTime       time.Time `json:"entry_time"`
	EntryPrice      float64   `json:"entry_price"`
	EntryReason     string    `json:"entry_reason"`
	ExitTime        time.Time `json:"exit_time"`
	ExitPrice       float64   `json:"exit_price"`
	ExitReason      string    `json:"exit_reason"`
	Quantity        float64   `json:"quantity"`
	PnL             float64   `json:"pnl"`
	PnLPercent      float64   `json:"pnl_percent"`
	Fees            float64   `json:"fees"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Result aggregates the replay's performance metrics.
type Result struct {
	Market         string    `json:"market"`
	Candles        int       `json:"candles"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	InitialBalance float64   `json:"initial_balance"`
	FinalBalance   float64   `json:"final_balance"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	TotalPnL    float64 `json:"total_pnl"`
	TotalFees   float64 `json:"total_fees"`
	NetPnL      float64 `json:"net_pnl"`
	AverageWin  float64 `json:"average_win"`
	AverageLoss float64 `json:"average_loss"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`

	ProfitFactor       float64 `json:"profit_factor"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`

	AvgTradeDurationMinutes int  `json:"avg_trade_duration_minutes"`
	ClosedAtEnd             bool `json:"closed_at_end"`
}

// Runner fetches candles and replays them.
type Runner struct {
	ex     exchange.Exchange
	logger *logging.Logger
}

func NewRunner(ex exchange.Exchange, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{ex: ex, logger: logger.WithComponent("backtest")}
}

// Run fetches the candle window from the exchange and replays it.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, []Trade, error) {
	candles, err := r.ex.GetCandles(ctx, cfg.Market, cfg.Granularity, cfg.Lookback)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch candles: %w", err)
	}
	if len(candles) < 50 {
		return nil, nil, fmt.Errorf("insufficient history: got %d candles, need at least 50", len(candles))
	}

	result, trades := Replay(candles, cfg)
	r.logger.Info("Backtest complete",
		"market", cfg.Market,
		"candles", result.Candles,
		"trades", result.TotalTrades,
		"win_rate", result.WinRate,
		"net_pnl", result.NetPnL)
	return result, trades, nil
}

// Replay runs the decision engine over a pre-fetched series. The full
// balance is committed on each entry and released on each exit, the
// same all-in sizing the live bot uses.
func Replay(candles []exchange.Candle, cfg Config) (*Result, []Trade) {
	result := &Result{
		Market:         cfg.Market,
		Candles:        len(candles),
		InitialBalance: cfg.InitialBalance,
	}
	if len(candles) == 0 {
		return result, nil
	}
	result.StartTime = candles[0].Time()
	result.EndTime = candles[len(candles)-1].Time()

	ind := indicator.NewEngine(indicator.Options{
		EnableEMA:      cfg.Signals.EnableEMA,
		EnableMACD:     cfg.Signals.EnableMACD,
		EnableOBV:      cfg.Signals.EnableOBV,
		EnableElderRay: cfg.Signals.EnableElderRay,
	})
	snapshots := ind.ComputeAll(candles)

	state := position.NewState(cfg.Market)
	balance := cfg.InitialBalance

	var trades []Trade
	var entry *Trade
	var quantity float64

	for i := range snapshots {
		decision := engine.Decide(snapshots[i], state, cfg.Risk, cfg.Signals)
		state.Apply(decision.Delta)

		if !decision.Delta.Commit {
			continue
		}

		switch decision.Action {
		case position.ActionBuy:
			quantity = balance / decision.Delta.Price
			entry = &Trade{
				EntryTime:   snapshots[i].CandleTime,
				EntryPrice:  decision.Delta.Price,
				EntryReason: strings.Join(decision.Reasons, "; "),
				Quantity:    quantity,
			}
		case position.ActionSell:
			if entry == nil {
				continue
			}
			trade := closeTrade(*entry, snapshots[i].CandleTime, decision.Delta.Price,
				strings.Join(decision.Reasons, "; "), cfg.Risk.TakerFeePct)
			trades = append(trades, trade)
			balance += trade.PnL - trade.Fees
			entry = nil
		}
	}

	// A position still open at the end of the series is marked to the
	// final close so the metrics account for it.
	if entry != nil {
		last := snapshots[len(snapshots)-1]
		trade := closeTrade(*entry, last.CandleTime, last.Price, "end of series", cfg.Risk.TakerFeePct)
		trades = append(trades, trade)
		balance += trade.PnL - trade.Fees
		result.ClosedAtEnd = true
	}

	result.FinalBalance = balance
	calculateMetrics(result, trades)
	return result, trades
}

func closeTrade(entry Trade, exitTime time.Time, exitPrice float64, reason string, feePct float64) Trade {
	entry.ExitTime = exitTime
	entry.ExitPrice = exitPrice
	entry.ExitReason = reason
	entry.PnL = (exitPrice - entry.EntryPrice) * entry.Quantity
	entry.PnLPercent = (exitPrice/entry.EntryPrice - 1) * 100
	entry.Fees = (entry.EntryPrice + exitPrice) * entry.Quantity * feePct / 100
	entry.DurationMinutes = int(exitTime.Sub(entry.EntryTime).Minutes())
	return entry
}

func calculateMetrics(result *Result, trades []Trade) {
	if len(trades) == 0 {
		return
	}

	result.TotalTrades = len(trades)

	var totalWinPnL, totalLossPnL float64
	var totalDuration int

	for _, trade := range trades {
		result.TotalPnL += trade.PnL
		result.TotalFees += trade.Fees
		totalDuration += trade.DurationMinutes

		if trade.PnL > 0 {
			result.WinningTrades++
			totalWinPnL += trade.PnL
			if trade.PnL > result.LargestWin {
				result.LargestWin = trade.PnL
			}
		} else {
			result.LosingTrades++
			totalLossPnL += trade.PnL
			if trade.PnL < result.LargestLoss {
				result.LargestLoss = trade.PnL
			}
		}
	}

	result.NetPnL = result.TotalPnL - result.TotalFees
	result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	result.AvgTradeDurationMinutes = totalDuration / result.TotalTrades

	if result.WinningTrades > 0 {
		result.AverageWin = totalWinPnL / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AverageLoss = totalLossPnL / float64(result.LosingTrades)
	}
	if totalLossPnL != 0 {
		result.ProfitFactor = totalWinPnL / (-totalLossPnL)
	}

	result.MaxDrawdown, result.MaxDrawdownPercent = maxDrawdown(trades, result.InitialBalance)
}

func maxDrawdown(trades []Trade, initialBalance float64) (float64, float64) {
	balance := initialBalance
	peak := initialBalance
	drawdown := 0.0

	for _, trade := range trades {
		balance += trade.PnL - trade.Fees
		if balance > peak {
			peak = balance
		}
		if d := peak - balance; d > drawdown {
			drawdown = d
		}
	}

	pct := 0.0
	if peak > 0 {
		pct = drawdown / peak * 100
	}
	return drawdown, pct
}
