package exchange

import (
	"errors"
	"time"
)

// ErrMarketNotFound is returned when the exchange reports no matching market.
// It is a fatal configuration condition, distinct from insufficient funds.
var ErrMarketNotFound = errors.New("market not found")

// Candle represents one OHLCV candlestick
type Candle struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"`
}

// Time returns the candle close time, the identity key for
// "same candle vs new candle" comparisons.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.CloseTime).UTC()
}

// OrderStatusFilled is the completed-order status shared by the live
// client and the mock; callers filter order history with it.
const OrderStatusFilled = "FILLED"

// Order represents a historical order record
type Order struct {
	OrderID    int64   `json:"orderId"`
	Market     string  `json:"symbol"`
	Side       string  `json:"side"`   // BUY or SELL
	Status     string  `json:"status"` // FILLED, CANCELED, ...
	Price      float64 `json:"price,string"`
	Size       float64 `json:"origQty,string"`
	Filled     float64 `json:"executedQty,string"`
	QuoteQty   float64 `json:"cummulativeQuoteQty,string"`
	Fee        float64 `json:"fee,string"`
	UpdateTime int64   `json:"updateTime"`
}

// OrderReceipt represents the exchange acknowledgment of a placed order
type OrderReceipt struct {
	Market        string  `json:"symbol"`
	OrderID       int64   `json:"orderId"`
	ClientOrderID string  `json:"clientOrderId"`
	TransactTime  int64   `json:"transactTime"`
	Price         float64 `json:"price,string"`
	Size          float64 `json:"origQty,string"`
	Filled        float64 `json:"executedQty,string"`
	QuoteQty      float64 `json:"cummulativeQuoteQty,string"`
	Status        string  `json:"status"`
	Side          string  `json:"side"`
}

// AvgFillPrice derives the average fill price from the receipt.
// Market orders report price 0; quote quantity over filled size is the truth.
func (r *OrderReceipt) AvgFillPrice() float64 {
	if r.Filled > 0 && r.QuoteQty > 0 {
		return r.QuoteQty / r.Filled
	}
	return r.Price
}

// MarketLimits is the per-market order sizing capability each exchange
// adapter implements once. Guard logic consumes only this, never the
// exchange identity.
type MarketLimits struct {
	Market        string
	MinBaseSize   float64 // minimum order quantity in base asset
	MinNotional   float64 // minimum order value in quote asset
	BasePrecision int     // decimal places for base quantities
}
