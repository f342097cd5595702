package exchange

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crypto-trading-bot/internal/logging"
)

// TickerStream maintains a websocket subscription to the exchange's
// miniTicker stream and caches the latest trade price between candle
// polls, so decisions see an intra-candle price without extra REST calls.
type TickerStream struct {
	mu sync.RWMutex

	logger *logging.Logger

	baseURL   string
	market    string
	wsConn    *websocket.Conn
	isRunning bool
	stopChan  chan struct{}

	lastPrice  float64
	lastUpdate time.Time
	reconnects int
}

// NewTickerStream creates a stream for one market.
// baseURL is the websocket endpoint, e.g. "wss://stream.binance.com:9443".
func NewTickerStream(baseURL, market string, logger *logging.Logger) *TickerStream {
	if logger == nil {
		logger = logging.Default()
	}
	return &TickerStream{
		baseURL: baseURL,
		market:  market,
		logger:  logger.WithComponent("ticker-stream"),
	}
}

// Start begins the connect/reconnect loop in the background
func (s *TickerStream) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.connect()
}

// Stop closes the stream
func (s *TickerStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
	if s.wsConn != nil {
		s.wsConn.Close()
	}
}

// LastPrice returns the most recent streamed price and whether it is
// fresh enough to trust (under a minute old).
func (s *TickerStream) LastPrice() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastPrice <= 0 || time.Since(s.lastUpdate) > time.Minute {
		return 0, false
	}
	return s.lastPrice, true
}

func (s *TickerStream) connect() {
	wsURL := s.baseURL + "/ws/" + strings.ToLower(s.market) + "@miniTicker"

	for {
		s.mu.RLock()
		if !s.isRunning {
			s.mu.RUnlock()
			return
		}
		s.mu.RUnlock()

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			s.logger.Warn("Ticker stream connection failed, retrying in 5s",
				"market", s.market, "error", err)
			s.mu.Lock()
			s.reconnects++
			s.mu.Unlock()

			select {
			case <-time.After(5 * time.Second):
				continue
			case <-s.stopChan:
				return
			}
		}

		s.mu.Lock()
		s.wsConn = conn
		s.reconnects = 0
		s.mu.Unlock()

		s.logger.Info("Ticker stream connected", "market", s.market)

		s.readLoop(conn)

		s.mu.RLock()
		isRunning := s.isRunning
		s.mu.RUnlock()
		if !isRunning {
			return
		}

		s.logger.Warn("Ticker stream connection lost, reconnecting in 3s", "market", s.market)
		select {
		case <-time.After(3 * time.Second):
		case <-s.stopChan:
			return
		}
	}
}

func (s *TickerStream) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Ticker stream read error", "market", s.market, "error", err)
			}
			return
		}

		var event struct {
			EventType string `json:"e"`
			Symbol    string `json:"s"`
			Close     string `json:"c"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.EventType != "24hrMiniTicker" {
			continue
		}

		price, err := strconv.ParseFloat(event.Close, 64)
		if err != nil || price <= 0 {
			continue
		}

		s.mu.Lock()
		s.lastPrice = price
		s.lastUpdate = time.Now()
		s.mu.Unlock()
	}
}
