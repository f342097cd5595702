package logging

import (
	"context"
)

type contextKey string

const loggerKey contextKey = "logger"

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// TradeContext creates a logger context for trade operations
func TradeContext(market, side string, amount, price float64) *Logger {
	return Default().WithFields(map[string]interface{}{
		"market": market,
		"side":   side,
		"amount": amount,
		"price":  price,
	}).WithComponent("trade")
}

// SignalContext creates a logger context for trading signals
func SignalContext(market, action string, reasons []string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"market":  market,
		"action":  action,
		"reasons": reasons,
	}).WithComponent("signal")
}

// ExchangeAPIContext creates a logger context for exchange API calls.
// Sensitive params are never included.
func ExchangeAPIContext(endpoint string, params map[string]interface{}) *Logger {
	l := Default().WithFields(map[string]interface{}{
		"endpoint": endpoint,
	}).WithComponent("exchange")

	for k, v := range params {
		if k != "signature" && k != "apiKey" {
			l = l.WithField(k, v)
		}
	}

	return l
}
