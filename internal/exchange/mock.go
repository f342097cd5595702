package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient is a scriptable in-memory exchange used for simulation and
// tests. Balances move when orders fill, so a full buy/sell round trip
// behaves like a real account.
type MockClient struct {
	mu sync.Mutex

	candles  map[string][]Candle // keyed by market
	ticker   map[string]float64
	balances map[string]float64
	orders   map[string][]Order
	limits   map[string]*MarketLimits

	baseCurrency  string
	quoteCurrency string
	nextOrderID   int64

	// FailPlacement forces PlaceMarketOrder to return an error, for
	// exercising the no-commit-on-failure path.
	FailPlacement bool

	Placed []OrderReceipt
}

func NewMockClient() *MockClient {
	return &MockClient{
		candles:     make(map[string][]Candle),
		ticker:      make(map[string]float64),
		balances:    make(map[string]float64),
		orders:      make(map[string][]Order),
		limits:      make(map[string]*MarketLimits),
		nextOrderID: 1,
	}
}

// SetCandles scripts the candle window returned for a market
func (m *MockClient) SetCandles(market string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[market] = candles
	if len(candles) > 0 {
		m.ticker[market] = candles[len(candles)-1].Close
	}
}

func (m *MockClient) SetTicker(market string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticker[market] = price
}

// SetBalances seeds the account and names the currency pair so fills can
// move funds between them.
func (m *MockClient) SetBalances(base string, baseAmount float64, quote string, quoteAmount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseCurrency = base
	m.quoteCurrency = quote
	m.balances[base] = baseAmount
	m.balances[quote] = quoteAmount
}

func (m *MockClient) SetOrders(market string, orders []Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[market] = orders
}

func (m *MockClient) SetMarketLimits(market string, limits *MarketLimits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[market] = limits
}

func (m *MockClient) GetCandles(_ context.Context, market, _ string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candles, ok := m.candles[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, market)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (m *MockClient) GetTicker(_ context.Context, market string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.ticker[market]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMarketNotFound, market)
	}
	return price, nil
}

func (m *MockClient) GetBalance(_ context.Context, currency string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[currency], nil
}

func (m *MockClient) GetOrders(_ context.Context, market, side, status string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Order, 0, len(m.orders[market]))
	for _, o := range m.orders[market] {
		if side != "" && !strings.EqualFold(o.Side, side) {
			continue
		}
		if status != "" && !strings.EqualFold(o.Status, status) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MockClient) GetOrder(_ context.Context, market string, orderID int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders[market] {
		if o.OrderID == orderID {
			order := o
			return &order, nil
		}
	}
	return nil, fmt.Errorf("order %d not found for %s", orderID, market)
}

func (m *MockClient) PlaceMarketOrder(_ context.Context, market, side string, amount float64) (*OrderReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPlacement {
		return nil, fmt.Errorf("order rejected by exchange")
	}

	price, ok := m.ticker[market]
	if !ok || price <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, market)
	}

	receipt := OrderReceipt{
		Market:       market,
		OrderID:      m.nextOrderID,
		TransactTime: int64(m.nextOrderID) * 1000,
		Status:       "FILLED",
		Side:         side,
	}
	m.nextOrderID++

	if side == "BUY" {
		// amount is quote currency spent
		filled := amount / price
		receipt.Size = filled
		receipt.Filled = filled
		receipt.QuoteQty = amount
		m.balances[m.quoteCurrency] -= amount
		m.balances[m.baseCurrency] += filled
	} else {
		// amount is base quantity sold
		receipt.Size = amount
		receipt.Filled = amount
		receipt.QuoteQty = amount * price
		m.balances[m.baseCurrency] -= amount
		m.balances[m.quoteCurrency] += amount * price
	}

	m.orders[market] = append(m.orders[market], Order{
		OrderID:    receipt.OrderID,
		Market:     market,
		Side:       side,
		Status:     "FILLED",
		Price:      price,
		Size:       receipt.Size,
		Filled:     receipt.Filled,
		QuoteQty:   receipt.QuoteQty,
		UpdateTime: receipt.TransactTime,
	})
	m.Placed = append(m.Placed, receipt)

	return &receipt, nil
}

func (m *MockClient) GetMarketLimits(_ context.Context, market string) (*MarketLimits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits, ok := m.limits[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, market)
	}
	out := *limits
	return &out, nil
}
