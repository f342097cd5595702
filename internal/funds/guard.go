// Package funds validates prospective order sizes against exchange
// minimums before any order is allowed.
package funds

import (
	"errors"
	"fmt"

	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/logging"
)

// ErrInsufficientFunds is returned when a balance is below the exchange
// minimum for the market.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrOrderSkipped replaces ErrInsufficientFunds in log-only mode: the
// shortfall has been logged as a warning and the order for this cycle
// must be skipped, but the caller keeps running.
var ErrOrderSkipped = errors.New("order skipped, funds below minimum")

// Guard checks balances against the market's sizing limits.
// It never branches on exchange identity; the MarketLimits capability
// is the only thing it consumes.
type Guard struct {
	limits  exchange.MarketLimits
	logOnly bool
	logger  *logging.Logger
}

func NewGuard(limits exchange.MarketLimits, logOnly bool, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{
		limits:  limits,
		logOnly: logOnly,
		logger:  logger.WithComponent("funds"),
	}
}

// Limits returns the market limits the guard was built with
func (g *Guard) Limits() exchange.MarketLimits {
	return g.limits
}

// CheckMinimumBase verifies the base-asset balance meets the exchange's
// minimum order quantity.
func (g *Guard) CheckMinimumBase(balance float64) error {
	if g.limits.MinBaseSize <= 0 {
		return nil
	}

	if balance < g.limits.MinBaseSize {
		return g.insufficient(fmt.Sprintf("base funds below minimum (actual: %.8f, minimum: %.8f)",
			balance, g.limits.MinBaseSize))
	}

	return nil
}

// CheckMinimumQuote verifies the quote-asset balance clears both
// order-value rules: the minimum notional in quote terms, and the
// minimum base-equivalent order size at the current price.
func (g *Guard) CheckMinimumQuote(balance, price float64) error {
	if price <= 0 {
		return fmt.Errorf("invalid price %.8f for quote funds check", price)
	}

	if g.limits.MinNotional > 0 && balance < g.limits.MinNotional {
		return g.insufficient(fmt.Sprintf("quote funds below minimum notional (actual: %.8f, minimum: %.8f)",
			balance, g.limits.MinNotional))
	}

	if g.limits.MinBaseSize > 0 && balance/price < g.limits.MinBaseSize {
		return g.insufficient(fmt.Sprintf("quote funds below minimum (actual: %.8f, minimum: %.8f)",
			balance/price, g.limits.MinBaseSize))
	}

	return nil
}

func (g *Guard) insufficient(msg string) error {
	if g.logOnly {
		g.logger.Warn("Insufficient funds, skipping order in log-only mode",
			"market", g.limits.Market, "detail", msg)
		return fmt.Errorf("%w: %s", ErrOrderSkipped, msg)
	}
	return fmt.Errorf("%w: %s", ErrInsufficientFunds, msg)
}
