package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a Binance spot REST client
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, secretKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetCandles fetches the most recent candlestick window for a market
func (c *Client) GetCandles(ctx context.Context, market, granularity string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", market)
	params.Set("interval", granularity)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching candles: %w", err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing candles: %w", err)
	}

	candles := make([]Candle, len(rawKlines))
	for i, raw := range rawKlines {
		candles[i] = Candle{
			OpenTime:  int64(raw[0].(float64)),
			Open:      parseFloat(raw[1]),
			High:      parseFloat(raw[2]),
			Low:       parseFloat(raw[3]),
			Close:     parseFloat(raw[4]),
			Volume:    parseFloat(raw[5]),
			CloseTime: int64(raw[6].(float64)),
		}
	}

	return candles, nil
}

// GetTicker fetches the current price for a market
func (c *Client) GetTicker(ctx context.Context, market string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", market)

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("error fetching ticker: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing ticker: %w", err)
	}

	return priceResp.Price, nil
}

// GetBalance fetches the free balance for a single currency
func (c *Client) GetBalance(ctx context.Context, currency string) (float64, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", map[string]string{})
	if err != nil {
		return 0, fmt.Errorf("error fetching account: %w", err)
	}

	var account struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return 0, fmt.Errorf("error parsing account: %w", err)
	}

	for _, b := range account.Balances {
		if b.Asset == currency {
			free, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("error parsing balance for %s: %w", currency, err)
			}
			return free, nil
		}
	}

	return 0, nil
}

// GetOrders fetches historical orders for a market, newest last.
// side and status filter the results; empty strings match everything.
func (c *Client) GetOrders(ctx context.Context, market, side, status string) ([]Order, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/allOrders", map[string]string{
		"symbol": market,
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching orders: %w", err)
	}

	var raw []struct {
		OrderID             int64  `json:"orderId"`
		Symbol              string `json:"symbol"`
		Side                string `json:"side"`
		Status              string `json:"status"`
		Price               string `json:"price"`
		OrigQty             string `json:"origQty"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		UpdateTime          int64  `json:"updateTime"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing orders: %w", err)
	}

	orders := make([]Order, 0, len(raw))
	for _, o := range raw {
		if side != "" && !strings.EqualFold(o.Side, side) {
			continue
		}
		if status != "" && !strings.EqualFold(o.Status, status) {
			continue
		}

		price, _ := strconv.ParseFloat(o.Price, 64)
		size, _ := strconv.ParseFloat(o.OrigQty, 64)
		filled, _ := strconv.ParseFloat(o.ExecutedQty, 64)
		quoteQty, _ := strconv.ParseFloat(o.CummulativeQuoteQty, 64)

		// market orders report price 0, derive it from the fill
		if price == 0 && filled > 0 {
			price = quoteQty / filled
		}

		orders = append(orders, Order{
			OrderID:    o.OrderID,
			Market:     o.Symbol,
			Side:       o.Side,
			Status:     o.Status,
			Price:      price,
			Size:       size,
			Filled:     filled,
			QuoteQty:   quoteQty,
			UpdateTime: o.UpdateTime,
		})
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].UpdateTime < orders[j].UpdateTime })

	return orders, nil
}

// GetOrder fetches a single order by ID. Used to resolve ambiguous
// acknowledgments after a placement timeout.
func (c *Client) GetOrder(ctx context.Context, market string, orderID int64) (*Order, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/order", map[string]string{
		"symbol":  market,
		"orderId": strconv.FormatInt(orderID, 10),
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching order %d: %w", orderID, err)
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("error parsing order: %w", err)
	}

	return &order, nil
}

// PlaceMarketOrder places a market order. For BUY, amount is the quote
// currency to spend; for SELL, amount is the base quantity to sell.
func (c *Client) PlaceMarketOrder(ctx context.Context, market, side string, amount float64) (*OrderReceipt, error) {
	params := map[string]string{
		"symbol":           market,
		"side":             side,
		"type":             "MARKET",
		"newClientOrderId": newClientOrderID(),
	}

	if side == "BUY" {
		params["quoteOrderQty"] = strconv.FormatFloat(amount, 'f', 8, 64)
	} else {
		params["quantity"] = strconv.FormatFloat(amount, 'f', 8, 64)
	}

	body, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}

	var receipt OrderReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}

	return &receipt, nil
}

// GetMarketLimits fetches the exchange filters for a market and reduces
// them to the MarketLimits capability.
func (c *Client) GetMarketLimits(ctx context.Context, market string) (*MarketLimits, error) {
	params := url.Values{}
	params.Set("symbol", market)

	body, err := c.get(ctx, "/api/v3/exchangeInfo", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching exchange info: %w", err)
	}

	var info struct {
		Symbols []struct {
			Symbol             string `json:"symbol"`
			BaseAssetPrecision int    `json:"baseAssetPrecision"`
			Filters            []struct {
				FilterType  string `json:"filterType"`
				MinQty      string `json:"minQty"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("error parsing exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != market {
			continue
		}

		limits := &MarketLimits{Market: market, BasePrecision: s.BaseAssetPrecision}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				limits.MinBaseSize, _ = strconv.ParseFloat(f.MinQty, 64)
			case "MIN_NOTIONAL", "NOTIONAL":
				limits.MinNotional, _ = strconv.ParseFloat(f.MinNotional, 64)
			}
		}
		return limits, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, market)
}

// get performs an unsigned GET request
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

// signedRequest performs an HMAC-SHA256 signed request. The signature
// is computed over the exact query string sent, since that is what the
// exchange verifies against.
func (c *Client) signedRequest(ctx context.Context, method, path string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	values.Set("signature", c.sign(values.Encode()))

	endpoint := fmt.Sprintf("%s%s", c.baseURL, path)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

// sign computes the HMAC-SHA256 of an already-encoded query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// newClientOrderID generates a unique client order ID so an ambiguous
// acknowledgment can be resolved against order history.
func newClientOrderID() string {
	return "cbot-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
