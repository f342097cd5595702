package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/api"
	"crypto-trading-bot/internal/bot"
	"crypto-trading-bot/internal/database"
	"crypto-trading-bot/internal/events"
	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/journal"
	"crypto-trading-bot/internal/logging"
	"crypto-trading-bot/internal/notification"
	"crypto-trading-bot/internal/position"
	"crypto-trading-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)

	eventBus := events.NewEventBus()

	notifier := buildNotifier(cfg, logger)
	ex := buildExchange(cfg, logger)
	ticker := buildTickerStream(cfg, logger)

	store := buildStore(cfg, logger)
	defer store.Close()

	repo, closeDB := buildRepository(cfg, logger)
	defer closeDB()

	jrnl, err := journal.New(cfg.LoggingConfig.JournalPath)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer jrnl.Close()

	tradingBot := bot.New(bot.Options{
		Config:   cfg,
		Exchange: ex,
		Ticker:   ticker,
		Store:    store,
		Journal:  jrnl,
		Notifier: notifier,
		Events:   eventBus,
		Repo:     repo,
		Logger:   logger,
	})

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(cfg, tradingBot, repo, eventBus, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("API server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- tradingBot.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		tradingBot.Stop()
		cancel()
		if err := <-runErr; err != nil {
			logger.Error("Bot exited with error", "error", err)
		}
	case err := <-runErr:
		if err != nil {
			logger.Error("Bot exited with error", "error", err)
		} else {
			logger.Info("Bot run complete")
		}
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown failed", "error", err)
		}
	}

	logger.Info("Shutdown complete")
}

func buildNotifier(cfg *config.Config, logger *logging.Logger) *notification.Manager {
	manager := notification.NewManager(cfg.NotificationConfig.Enabled)
	if !cfg.NotificationConfig.Enabled {
		return manager
	}

	if cfg.NotificationConfig.Telegram.Enabled {
		manager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  true,
		}))
		logger.Info("Telegram notifications enabled")
	}
	if cfg.NotificationConfig.Discord.Enabled {
		manager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			Enabled:    true,
		}))
		logger.Info("Discord notifications enabled")
	}
	return manager
}

// buildExchange selects the live client or the scripted mock. Live
// credentials come from Vault when configured, otherwise from the
// exchange config (which env vars already override).
func buildExchange(cfg *config.Config, logger *logging.Logger) exchange.Exchange {
	if cfg.ExchangeConfig.MockMode {
		logger.Info("Mock exchange enabled, generating synthetic candles",
			"market", cfg.MarketConfig.Market)
		return buildMockExchange(cfg)
	}

	apiKey := cfg.ExchangeConfig.APIKey
	secretKey := cfg.ExchangeConfig.SecretKey

	if cfg.VaultConfig.Enabled {
		vc, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			log.Fatalf("Failed to create vault client: %v", err)
		}
		creds, err := vc.FetchCredentials(context.Background())
		if err != nil {
			log.Fatalf("Failed to fetch credentials from vault: %v", err)
		}
		apiKey = creds.APIKey
		secretKey = creds.SecretKey
		logger.Info("Exchange credentials loaded from vault")
	}

	return exchange.NewClient(apiKey, secretKey, cfg.ExchangeConfig.BaseURL)
}

// buildTickerStream attaches a websocket price stream for real polling
// runs; simulation replays and the mock exchange have no use for one.
func buildTickerStream(cfg *config.Config, logger *logging.Logger) bot.PriceStream {
	if cfg.ExchangeConfig.MockMode || cfg.TradingConfig.Simulation {
		return nil
	}
	logger.Info("Ticker stream enabled", "market", cfg.MarketConfig.Market)
	return exchange.NewTickerStream(cfg.ExchangeConfig.WSBaseURL, cfg.MarketConfig.Market, logger)
}

// buildMockExchange seeds the in-memory exchange with a random-walk
// candle series so dry runs and demos work with no network at all.
func buildMockExchange(cfg *config.Config) *exchange.MockClient {
	mock := exchange.NewMockClient()
	mkt := cfg.MarketConfig

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	price := 40000.0
	start := time.Now().Add(-time.Duration(mkt.Lookback) * time.Hour).Truncate(time.Hour)

	candles := make([]exchange.Candle, mkt.Lookback)
	for i := range candles {
		open := price
		price *= 1 + (rng.Float64()-0.5)*0.02
		high := open
		low := open
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}
		openTime := start.Add(time.Duration(i) * time.Hour)
		candles[i] = exchange.Candle{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      high * 1.001,
			Low:       low * 0.999,
			Close:     price,
			Volume:    10 + rng.Float64()*100,
			CloseTime: openTime.Add(time.Hour).UnixMilli(),
		}
	}

	mock.SetCandles(mkt.Market, candles)
	mock.SetBalances(mkt.BaseCurrency, 0, mkt.QuoteCurrency, 10000)
	mock.SetMarketLimits(mkt.Market, &exchange.MarketLimits{
		Market:        mkt.Market,
		MinBaseSize:   0.0001,
		MinNotional:   10,
		BasePrecision: 8,
	})
	return mock
}

func buildStore(cfg *config.Config, logger *logging.Logger) *position.Store {
	if !cfg.RedisConfig.Enabled {
		logger.Info("Redis disabled, position state is in-memory only")
		return position.NewMemoryStore(logger)
	}
	return position.NewStore(cfg.RedisConfig.Address, cfg.RedisConfig.Password,
		cfg.RedisConfig.DB, logger)
}

func buildRepository(cfg *config.Config, logger *logging.Logger) (*database.Repository, func()) {
	if !cfg.DatabaseConfig.Enabled {
		logger.Info("Database disabled, trades will not be recorded")
		return nil, func() {}
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.RunMigrations(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	return database.NewRepository(db), db.Close
}
