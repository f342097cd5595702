package exchange

import "context"

// Exchange defines the operations the trading loop needs from an exchange.
// All calls are bounded by the supplied context; callers treat timeouts as
// transient failures.
type Exchange interface {
	GetCandles(ctx context.Context, market, granularity string, limit int) ([]Candle, error)
	GetTicker(ctx context.Context, market string) (float64, error)
	GetBalance(ctx context.Context, currency string) (float64, error)
	GetOrders(ctx context.Context, market, side, status string) ([]Order, error)
	GetOrder(ctx context.Context, market string, orderID int64) (*Order, error)
	PlaceMarketOrder(ctx context.Context, market, side string, amount float64) (*OrderReceipt, error)
	GetMarketLimits(ctx context.Context, market string) (*MarketLimits, error)
}

// Ensure both implementations satisfy the interface
var _ Exchange = (*Client)(nil)
var _ Exchange = (*MockClient)(nil)
