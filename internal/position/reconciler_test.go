package position

import (
	"context"
	"errors"
	"testing"

	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/funds"
)

func testReconciler(ex exchange.Exchange, live bool, override string) *Reconciler {
	guard := funds.NewGuard(exchange.MarketLimits{
		Market:      "BTCUSDT",
		MinBaseSize: 0.0001,
	}, false, nil)
	return NewReconciler(ex, guard, ReconcilerOptions{
		Market:             "BTCUSDT",
		BaseCurrency:       "BTC",
		QuoteCurrency:      "USDT",
		Live:               live,
		LastActionOverride: override,
	}, nil)
}

func TestReconcileDryRunIsFlat(t *testing.T) {
	mock := exchange.NewMockClient()
	r := testReconciler(mock, false, "")

	state, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastAction != ActionSell {
		t.Fatalf("dry run must start flat, got %s", state.LastAction)
	}
	if state.LastBuyPrice != 0 {
		t.Errorf("flat state must have no entry price, got %f", state.LastBuyPrice)
	}
}

func TestReconcileResumesOpenPosition(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetTicker("BTCUSDT", 41000)
	mock.SetBalances("BTC", 0.5, "USDT", 10)
	mock.SetOrders("BTCUSDT", []exchange.Order{
		{OrderID: 1, Market: "BTCUSDT", Side: "SELL", Status: exchange.OrderStatusFilled, Price: 39000, UpdateTime: 1},
		{OrderID: 2, Market: "BTCUSDT", Side: "BUY", Status: exchange.OrderStatusFilled,
			Price: 40000, Filled: 0.5, QuoteQty: 20000, Fee: 20, UpdateTime: 2},
	})

	r := testReconciler(mock, true, "")
	state, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastAction != ActionBuy {
		t.Fatalf("expected BUY from history, got %s", state.LastAction)
	}
	if state.LastBuyPrice != 40000 || state.LastBuyFilled != 0.5 || state.LastBuySize != 20000 {
		t.Errorf("entry not populated from order: %+v", state)
	}
	if state.TrailingHigh < 41000 {
		t.Errorf("trailing high should cover the current price, got %f", state.TrailingHigh)
	}
}

func TestReconcileFlatAfterSell(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetTicker("BTCUSDT", 40000)
	mock.SetBalances("BTC", 0, "USDT", 500)
	mock.SetOrders("BTCUSDT", []exchange.Order{
		{OrderID: 1, Market: "BTCUSDT", Side: "BUY", Status: exchange.OrderStatusFilled, Price: 39000, UpdateTime: 1},
		{OrderID: 2, Market: "BTCUSDT", Side: "SELL", Status: exchange.OrderStatusFilled, Price: 40000, UpdateTime: 2},
	})

	r := testReconciler(mock, true, "")
	state, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastAction != ActionSell {
		t.Fatalf("expected SELL, got %s", state.LastAction)
	}
}

func TestReconcileFlatWithoutQuoteFundsFails(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetTicker("BTCUSDT", 40000)
	mock.SetBalances("BTC", 0, "USDT", 0.5) // buys far less than min base size
	mock.SetOrders("BTCUSDT", []exchange.Order{
		{OrderID: 1, Market: "BTCUSDT", Side: "SELL", Status: exchange.OrderStatusFilled, Price: 40000, UpdateTime: 1},
	})

	r := testReconciler(mock, true, "")
	_, err := r.Reconcile(context.Background())
	if !errors.Is(err, funds.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestReconcileHeuristicBaseHeavy(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetTicker("BTCUSDT", 40000)
	mock.SetBalances("BTC", 2, "USDT", 1)

	r := testReconciler(mock, true, "")
	state, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastAction != ActionBuy {
		t.Fatalf("base-heavy balances should read as BUY, got %s", state.LastAction)
	}
	if state.LastBuyPrice != 40000 {
		t.Errorf("guessed entry should use the current price, got %f", state.LastBuyPrice)
	}
}

func TestReconcileHeuristicQuoteHeavy(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetTicker("BTCUSDT", 40000)
	mock.SetBalances("BTC", 0.1, "USDT", 5000)

	r := testReconciler(mock, true, "")
	state, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastAction != ActionSell {
		t.Fatalf("quote-heavy balances should read as SELL, got %s", state.LastAction)
	}
}

func TestReconcileZeroBalancesFails(t *testing.T) {
	mock := exchange.NewMockClient()
	mock.SetTicker("BTCUSDT", 40000)
	mock.SetBalances("BTC", 0, "USDT", 0)

	r := testReconciler(mock, true, "")
	_, err := r.Reconcile(context.Background())
	if !errors.Is(err, funds.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds for empty account, got %v", err)
	}
}

func TestReconcileOverride(t *testing.T) {
	mock := exchange.NewMockClient()
	r := testReconciler(mock, false, "buy")

	state, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.LastAction != ActionBuy {
		t.Fatalf("override should force BUY, got %s", state.LastAction)
	}
}

func TestNormalizedBalanceHeuristic(t *testing.T) {
	if got := NormalizedBalanceHeuristic(2, 1); got != ActionBuy {
		t.Errorf("base-heavy should be BUY, got %s", got)
	}
	if got := NormalizedBalanceHeuristic(1, 2); got != ActionSell {
		t.Errorf("quote-heavy should be SELL, got %s", got)
	}
	if got := NormalizedBalanceHeuristic(1, 1); got != ActionWait {
		t.Errorf("equal balances are inconclusive, got %s", got)
	}
}
