package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trade is one committed buy or sell.
type Trade struct {
	ID         uuid.UUID `json:"id"`
	Market     string    `json:"market"`
	Side       string    `json:"side"`
	Price      float64   `json:"price"`
	Amount     float64   `json:"amount"`
	Filled     float64   `json:"filled"`
	Fee        float64   `json:"fee"`
	Margin     float64   `json:"margin"`
	Reason     string    `json:"reason"`
	Live       bool      `json:"live"`
	CandleTime time.Time `json:"candle_time"`
	CreatedAt  time.Time `json:"created_at"`
}

// PositionSnapshot is an audit copy of the position state after a
// committed action.
type PositionSnapshot struct {
	ID           uuid.UUID `json:"id"`
	Market       string    `json:"market"`
	LastAction   string    `json:"last_action"`
	LastBuyPrice float64   `json:"last_buy_price"`
	TrailingHigh float64   `json:"trailing_high"`
	BuyCount     int       `json:"buy_count"`
	SellCount    int       `json:"sell_count"`
	CandleTime   time.Time `json:"candle_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository provides trade log access
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveTrade records a committed trade.
func (r *Repository) SaveTrade(ctx context.Context, t *Trade) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO trades (id, market, side, price, amount, filled, fee, margin, reason, live, candle_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Market, t.Side, t.Price, t.Amount, t.Filled, t.Fee, t.Margin, t.Reason, t.Live, t.CandleTime, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// SavePositionSnapshot records the state after a committed action.
func (r *Repository) SavePositionSnapshot(ctx context.Context, s *PositionSnapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO position_snapshots (id, market, last_action, last_buy_price, trailing_high, buy_count, sell_count, candle_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Market, s.LastAction, s.LastBuyPrice, s.TrailingHigh, s.BuyCount, s.SellCount, s.CandleTime, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save position snapshot: %w", err)
	}
	return nil
}

// ListTrades returns the most recent trades for a market, newest first.
func (r *Repository) ListTrades(ctx context.Context, market string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, market, side, price, amount, filled, fee, margin, reason, live, candle_time, created_at
		FROM trades
		WHERE market = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		market, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Market, &t.Side, &t.Price, &t.Amount, &t.Filled,
			&t.Fee, &t.Margin, &t.Reason, &t.Live, &t.CandleTime, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SessionStats aggregates the trade log for a market.
type SessionStats struct {
	Market    string  `json:"market"`
	BuyCount  int     `json:"buy_count"`
	SellCount int     `json:"sell_count"`
	BuySum    float64 `json:"buy_sum"`
	SellSum   float64 `json:"sell_sum"`
}

// GetSessionStats aggregates buys and sells for a market.
func (r *Repository) GetSessionStats(ctx context.Context, market string) (*SessionStats, error) {
	stats := &SessionStats{Market: market}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE side = 'BUY'),
			COUNT(*) FILTER (WHERE side = 'SELL'),
			COALESCE(SUM(price) FILTER (WHERE side = 'BUY'), 0),
			COALESCE(SUM(price) FILTER (WHERE side = 'SELL'), 0)
		FROM trades
		WHERE market = $1`,
		market,
	).Scan(&stats.BuyCount, &stats.SellCount, &stats.BuySum, &stats.SellSum)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate session stats: %w", err)
	}
	return stats, nil
}
