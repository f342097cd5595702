package funds

import (
	"errors"
	"testing"

	"crypto-trading-bot/internal/exchange"
)

func testLimits() exchange.MarketLimits {
	return exchange.MarketLimits{
		Market:      "BTCUSDT",
		MinBaseSize: 0.01,
		MinNotional: 10,
	}
}

func TestCheckMinimumBase(t *testing.T) {
	g := NewGuard(testLimits(), false, nil)

	if err := g.CheckMinimumBase(0.005); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds below minimum, got %v", err)
	}
	if err := g.CheckMinimumBase(0.02); err != nil {
		t.Fatalf("expected pass above minimum, got %v", err)
	}
	if err := g.CheckMinimumBase(0.01); err != nil {
		t.Fatalf("expected pass at exact minimum, got %v", err)
	}
}

func TestCheckMinimumQuote(t *testing.T) {
	g := NewGuard(testLimits(), false, nil)

	// 100 quote at price 20000 buys 0.005 base, under the 0.01 minimum.
	if err := g.CheckMinimumQuote(100, 20000); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	// 500 quote buys 0.025 base.
	if err := g.CheckMinimumQuote(500, 20000); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestCheckMinimumQuoteNotional(t *testing.T) {
	g := NewGuard(testLimits(), false, nil)

	// 5 quote clears the base-equivalent check at a low price but not
	// the 10-quote minimum notional.
	if err := g.CheckMinimumQuote(5, 100); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds below minimum notional, got %v", err)
	}
	if err := g.CheckMinimumQuote(10, 100); err != nil {
		t.Fatalf("expected pass at exact minimum notional, got %v", err)
	}
}

func TestCheckMinimumQuoteInvalidPrice(t *testing.T) {
	g := NewGuard(testLimits(), false, nil)
	if err := g.CheckMinimumQuote(100, 0); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestLogOnlyModeSkipsInsteadOfFailing(t *testing.T) {
	g := NewGuard(testLimits(), true, nil)

	if err := g.CheckMinimumBase(0.001); !errors.Is(err, ErrOrderSkipped) {
		t.Fatalf("log-only mode should report a skip, got %v", err)
	}
	if err := g.CheckMinimumQuote(1, 20000); !errors.Is(err, ErrOrderSkipped) {
		t.Fatalf("log-only mode should report a skip, got %v", err)
	}
	if errors.Is(g.CheckMinimumBase(0.001), ErrInsufficientFunds) {
		t.Fatal("a skip must not read as a hard insufficient-funds failure")
	}
}

func TestZeroLimitsSkipChecks(t *testing.T) {
	g := NewGuard(exchange.MarketLimits{Market: "BTCUSDT"}, false, nil)
	if err := g.CheckMinimumBase(0); err != nil {
		t.Fatalf("no configured minimum should pass, got %v", err)
	}
}
