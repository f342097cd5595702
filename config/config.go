package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ExchangeConfig     ExchangeConfig     `json:"exchange"`
	MarketConfig       MarketConfig       `json:"market"`
	TradingConfig      TradingConfig      `json:"trading"`
	RiskConfig         RiskConfig         `json:"risk"`
	SignalConfig       SignalConfig       `json:"signals"`
	NotificationConfig NotificationConfig `json:"notification"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	VaultConfig        VaultConfig        `json:"vault"`
	ServerConfig       ServerConfig       `json:"server"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ExchangeConfig holds exchange API connection settings
type ExchangeConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	WSBaseURL string `json:"ws_base_url"` // websocket endpoint for the ticker stream
	TestNet   bool   `json:"testnet"`
	MockMode  bool   `json:"mock_mode"` // Use simulated data when the exchange API is unavailable
}

// MarketConfig identifies the traded market and candle cadence
type MarketConfig struct {
	Market        string `json:"market"`         // e.g. "BTCUSDT"
	BaseCurrency  string `json:"base_currency"`  // e.g. "BTC"
	QuoteCurrency string `json:"quote_currency"` // e.g. "USDT"
	Granularity   string `json:"granularity"`    // candle interval, e.g. "1h"
	PollInterval  int    `json:"poll_interval"`  // seconds between polls (decoupled from granularity)
	Lookback      int    `json:"lookback"`       // candles required per window
}

type TradingConfig struct {
	Live                bool   `json:"live"`                  // place real orders
	Simulation          bool   `json:"simulation"`            // replay a historical series deterministically
	SimSpeed            string `json:"sim_speed"`             // "fast" or "slow"
	InsufficientLogOnly bool   `json:"insufficient_log_only"` // warn instead of halting on insufficient funds
	LastActionOverride  string `json:"last_action_override"`  // manual reconciliation override: "BUY" or "SELL"
	MaxPollRetries      int    `json:"max_poll_retries"`      // bounded retries for short candle windows
}

// RiskConfig holds the sell-side risk rules evaluated every cycle.
// Percentages are expressed as e.g. -2.5 for -2.5%.
type RiskConfig struct {
	SellUpperPct           float64 `json:"sell_upper_pct"`            // profit bank threshold
	SellLowerPct           float64 `json:"sell_lower_pct"`            // loss failsafe threshold (negative)
	TrailingStopLossPct    float64 `json:"trailing_stop_loss_pct"`    // retrace below trailing high
	TrailingStopTriggerPct float64 `json:"trailing_stop_trigger_pct"` // margin required to arm the trailing stop
	DynamicTSL             bool    `json:"dynamic_tsl"`
	TSLMultiplier          float64 `json:"tsl_multiplier"`         // scales the stop as margin grows
	TSLTriggerMultiplier   float64 `json:"tsl_trigger_multiplier"` // scales the trigger as margin grows
	TSLMaxPct              float64 `json:"tsl_max_pct"`            // cap on the effective stop
	PreventLoss            bool    `json:"prevent_loss"`
	PreventLossTrigger     float64 `json:"prevent_loss_trigger"` // margin that arms prevent-loss
	PreventLossMargin      float64 `json:"prevent_loss_margin"`  // margin floor that fires the sell
	BuyNearHighPct         float64 `json:"buy_near_high_pct"`    // skip buys within this % of the window high
	AllowSellAtLoss        bool    `json:"allow_sell_at_loss"`
	SellAtReversal         bool    `json:"sell_at_reversal"` // bank on strong bearish candlestick reversals
	TakerFeePct            float64 `json:"taker_fee_pct"`    // default fee applied to margin calculations
}

// SignalConfig toggles the indicator families feeding the decision engine
type SignalConfig struct {
	EnableEMA      bool `json:"enable_ema"`
	EnableMACD     bool `json:"enable_macd"`
	EnableOBV      bool `json:"enable_obv"`
	EnableElderRay bool `json:"enable_elder_ray"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for position-state persistence
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault configuration for API key retrieval
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// ServerConfig holds the status HTTP API configuration
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	JournalPath string `json:"journal_path"` // per-cycle audit journal file, empty = stdout
}

func Load() (*Config, error) {
	// .env is optional and never overrides already-exported variables
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ExchangeConfig.BaseURL == "" {
		cfg.ExchangeConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.ExchangeConfig.WSBaseURL == "" {
		cfg.ExchangeConfig.WSBaseURL = "wss://stream.binance.com:9443"
	}
	if cfg.MarketConfig.Granularity == "" {
		cfg.MarketConfig.Granularity = "1h"
	}
	if cfg.MarketConfig.PollInterval <= 0 {
		cfg.MarketConfig.PollInterval = 300
	}
	if cfg.MarketConfig.Lookback <= 0 {
		cfg.MarketConfig.Lookback = 300
	}
	if cfg.TradingConfig.MaxPollRetries <= 0 {
		cfg.TradingConfig.MaxPollRetries = 5
	}
	if cfg.RiskConfig.TakerFeePct == 0 {
		cfg.RiskConfig.TakerFeePct = 0.5
	}
	if cfg.RiskConfig.TSLMultiplier == 0 {
		cfg.RiskConfig.TSLMultiplier = 1.0
	}
	if cfg.RiskConfig.TSLTriggerMultiplier == 0 {
		cfg.RiskConfig.TSLTriggerMultiplier = 1.0
	}
	if cfg.RiskConfig.TSLMaxPct == 0 {
		cfg.RiskConfig.TSLMaxPct = 15.0
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over config.json.
func applyEnvOverrides(cfg *Config) {
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.ExchangeConfig.SecretKey)
	cfg.ExchangeConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.ExchangeConfig.BaseURL)
	cfg.ExchangeConfig.WSBaseURL = getEnvOrDefault("EXCHANGE_WS_BASE_URL", cfg.ExchangeConfig.WSBaseURL)
	cfg.ExchangeConfig.TestNet = getEnvBoolOrDefault("EXCHANGE_TESTNET", cfg.ExchangeConfig.TestNet)
	cfg.ExchangeConfig.MockMode = getEnvBoolOrDefault("EXCHANGE_MOCK_MODE", cfg.ExchangeConfig.MockMode)

	cfg.MarketConfig.Market = getEnvOrDefault("MARKET", cfg.MarketConfig.Market)
	cfg.MarketConfig.BaseCurrency = getEnvOrDefault("BASE_CURRENCY", cfg.MarketConfig.BaseCurrency)
	cfg.MarketConfig.QuoteCurrency = getEnvOrDefault("QUOTE_CURRENCY", cfg.MarketConfig.QuoteCurrency)
	cfg.MarketConfig.Granularity = getEnvOrDefault("GRANULARITY", cfg.MarketConfig.Granularity)
	cfg.MarketConfig.PollInterval = getEnvIntOrDefault("POLL_INTERVAL", cfg.MarketConfig.PollInterval)

	cfg.TradingConfig.Live = getEnvBoolOrDefault("TRADING_LIVE", cfg.TradingConfig.Live)
	cfg.TradingConfig.Simulation = getEnvBoolOrDefault("TRADING_SIMULATION", cfg.TradingConfig.Simulation)
	cfg.TradingConfig.LastActionOverride = getEnvOrDefault("LAST_ACTION", cfg.TradingConfig.LastActionOverride)

	cfg.RiskConfig.SellUpperPct = getEnvFloatOrDefault("SELL_UPPER_PCT", cfg.RiskConfig.SellUpperPct)
	cfg.RiskConfig.SellLowerPct = getEnvFloatOrDefault("SELL_LOWER_PCT", cfg.RiskConfig.SellLowerPct)
	cfg.RiskConfig.TrailingStopLossPct = getEnvFloatOrDefault("TRAILING_STOP_LOSS_PCT", cfg.RiskConfig.TrailingStopLossPct)
	cfg.RiskConfig.TrailingStopTriggerPct = getEnvFloatOrDefault("TRAILING_STOP_TRIGGER_PCT", cfg.RiskConfig.TrailingStopTriggerPct)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)

	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
}

// Validate rejects configurations that can never run correctly.
// These are fatal at startup and never retried.
func (c *Config) Validate() error {
	if c.MarketConfig.Market == "" {
		return fmt.Errorf("invalid configuration: market is required")
	}
	if c.MarketConfig.BaseCurrency == "" || c.MarketConfig.QuoteCurrency == "" {
		return fmt.Errorf("invalid configuration: base and quote currencies are required")
	}
	if c.TradingConfig.Live && c.TradingConfig.Simulation {
		return fmt.Errorf("invalid configuration: live and simulation modes are mutually exclusive")
	}
	if c.TradingConfig.Live && !c.ExchangeConfig.MockMode && !c.VaultConfig.Enabled &&
		(c.ExchangeConfig.APIKey == "" || c.ExchangeConfig.SecretKey == "") {
		return fmt.Errorf("invalid configuration: live trading requires API credentials")
	}
	if la := strings.ToUpper(c.TradingConfig.LastActionOverride); la != "" && la != "BUY" && la != "SELL" {
		return fmt.Errorf("invalid configuration: last_action_override must be BUY or SELL, got %q", la)
	}
	if c.RiskConfig.SellLowerPct > 0 {
		return fmt.Errorf("invalid configuration: sell_lower_pct must be negative or zero")
	}
	if c.RiskConfig.SellUpperPct < 0 {
		return fmt.Errorf("invalid configuration: sell_upper_pct must be positive or zero")
	}
	return nil
}

// PollInterval returns the wall-clock polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.MarketConfig.PollInterval) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
