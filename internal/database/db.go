// Package database persists the historical trade log in PostgreSQL.
// The bot runs fine without it; persistence is enabled by config.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-trading-bot/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger *logging.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("database")

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL", "database", cfg.Database)

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			market VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			amount DECIMAL(20, 8) NOT NULL,
			filled DECIMAL(20, 8) NOT NULL,
			fee DECIMAL(20, 8) NOT NULL DEFAULT 0,
			margin DECIMAL(10, 4),
			reason TEXT,
			live BOOLEAN NOT NULL DEFAULT FALSE,
			candle_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at)`,

		`CREATE TABLE IF NOT EXISTS position_snapshots (
			id UUID PRIMARY KEY,
			market VARCHAR(20) NOT NULL,
			last_action VARCHAR(4) NOT NULL,
			last_buy_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			trailing_high DECIMAL(20, 8) NOT NULL DEFAULT 0,
			buy_count INTEGER NOT NULL DEFAULT 0,
			sell_count INTEGER NOT NULL DEFAULT 0,
			candle_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_position_snapshots_market ON position_snapshots(market)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info("Database migrations complete")
	return nil
}
