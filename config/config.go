package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	SignalConfig         SignalConfig         `json:"signal"`
	ExchangeConfig       ExchangeConfig       `json:"exchange"`
	CapitalConfig        CapitalConfig        `json:"capital"`
	FollowConfig         FollowConfig         `json:"follow"`
	LedgerConfig         LedgerConfig         `json:"ledger"`
	CircuitBreakerConfig CircuitBreakerConfig `json:"circuit_breaker"`
	NotificationConfig   NotificationConfig   `json:"notification"`
	LoggingConfig        LoggingConfig        `json:"logging"`
	ServerConfig         ServerConfig         `json:"server"`
}

// SignalConfig points at the remote trading agent being mirrored
type SignalConfig struct {
	BaseURL         string `json:"base_url"`
	AgentID         string `json:"agent_id"`
	PollIntervalSec int    `json:"poll_interval_sec"`
	TimeoutSec      int    `json:"timeout_sec"`
}

// ExchangeConfig holds the exchange account the bot trades on
type ExchangeConfig struct {
	Exchange   string `json:"exchange"` // "binance" or "mock"
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	TestNet    bool   `json:"testnet"`
	MarginType string `json:"margin_type"` // CROSSED or ISOLATED
}

// CapitalConfig selects the allocation policy. Exactly one of TotalMargin
// and FixedAmountPerCoin must be set.
type CapitalConfig struct {
	TotalMargin        float64 `json:"total_margin"`          // proportional budget
	FixedAmountPerCoin float64 `json:"fixed_amount_per_coin"` // fixed per-position margin
	MaxTotalMargin     float64 `json:"max_total_margin"`      // cap for the fixed policy
}

// FollowConfig controls mirroring behaviour
type FollowConfig struct {
	ProfitTargetPct   float64 `json:"profit_target_pct"`   // 0 disables the profit-exit record
	AutoRefollow      bool    `json:"auto_refollow"`       // re-arm symbols after exits
	DetectManualClose bool    `json:"detect_manual_close"` // compare ledger against broker positions
	PriceTolerancePct float64 `json:"price_tolerance_pct"` // max adverse drift before skipping entry
	MaxOpenPositions  int     `json:"max_open_positions"`  // 0 disables the limit
	MinFreeBalance    float64 `json:"min_free_balance"`    // stop opening below this balance
	DryRun            bool    `json:"dry_run"`             // log orders without placing them
}

// LedgerConfig locates the order history file
type LedgerConfig struct {
	Path string `json:"path"`
}

type CircuitBreakerConfig struct {
	Enabled                bool `json:"enabled"`
	MaxConsecutiveFailures int  `json:"max_consecutive_failures"`
	CooldownMinutes        int  `json:"cooldown_minutes"`
	MaxOrdersPerMinute     int  `json:"max_orders_per_minute"`
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

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"`
}

type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// Validation errors
var (
	ErrBothPolicies     = errors.New("total_margin and fixed_amount_per_coin are mutually exclusive")
	ErrNoPolicy         = errors.New("either total_margin or fixed_amount_per_coin must be set")
	ErrMissingAgentID   = errors.New("signal agent_id is required")
	ErrMissingSignalURL = errors.New("signal base_url is required")
)

// Load reads config.json if present and applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom("config.json")
}

// LoadFrom reads the given config file and applies environment overrides.
// A missing file is not an error; overrides alone can carry a full config.
func LoadFrom(filename string) (*Config, error) {
	cfg, err := loadFromFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = defaultConfig()
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks cross-field constraints. Called after CLI flags have
// been merged in.
func (c *Config) Validate() error {
	if c.SignalConfig.AgentID == "" {
		return ErrMissingAgentID
	}
	if c.SignalConfig.BaseURL == "" {
		return ErrMissingSignalURL
	}
	if c.CapitalConfig.TotalMargin > 0 && c.CapitalConfig.FixedAmountPerCoin > 0 {
		return ErrBothPolicies
	}
	if c.CapitalConfig.TotalMargin <= 0 && c.CapitalConfig.FixedAmountPerCoin <= 0 {
		return ErrNoPolicy
	}
	if c.SignalConfig.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive, got %d", c.SignalConfig.PollIntervalSec)
	}
	if mt := c.ExchangeConfig.MarginType; mt != "" && mt != "CROSSED" && mt != "ISOLATED" {
		return fmt.Errorf("margin_type must be CROSSED or ISOLATED, got %q", mt)
	}
	return nil
}

// PollInterval returns the polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.SignalConfig.PollIntervalSec) * time.Second
}

// SignalTimeout returns the signal request timeout as a duration.
func (c *Config) SignalTimeout() time.Duration {
	if c.SignalConfig.TimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.SignalConfig.TimeoutSec) * time.Second
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Signal source
	cfg.SignalConfig.BaseURL = getEnvOrDefault("SIGNAL_BASE_URL", cfg.SignalConfig.BaseURL)
	cfg.SignalConfig.AgentID = getEnvOrDefault("SIGNAL_AGENT_ID", cfg.SignalConfig.AgentID)
	cfg.SignalConfig.PollIntervalSec = getEnvIntOrDefault("SIGNAL_POLL_INTERVAL", defaultInt(cfg.SignalConfig.PollIntervalSec, 60))
	cfg.SignalConfig.TimeoutSec = getEnvIntOrDefault("SIGNAL_TIMEOUT", defaultInt(cfg.SignalConfig.TimeoutSec, 15))

	// Exchange credentials come from the environment in preference to the file
	cfg.ExchangeConfig.Exchange = getEnvOrDefault("EXCHANGE", defaultStr(cfg.ExchangeConfig.Exchange, "binance"))
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.ExchangeConfig.SecretKey)
	cfg.ExchangeConfig.TestNet = getEnvOrDefault("EXCHANGE_TESTNET", boolStr(cfg.ExchangeConfig.TestNet)) == "true"
	cfg.ExchangeConfig.MarginType = getEnvOrDefault("EXCHANGE_MARGIN_TYPE", defaultStr(cfg.ExchangeConfig.MarginType, "CROSSED"))

	// Capital policy
	cfg.CapitalConfig.TotalMargin = getEnvFloatOrDefault("CAPITAL_TOTAL_MARGIN", cfg.CapitalConfig.TotalMargin)
	cfg.CapitalConfig.FixedAmountPerCoin = getEnvFloatOrDefault("CAPITAL_FIXED_AMOUNT", cfg.CapitalConfig.FixedAmountPerCoin)
	cfg.CapitalConfig.MaxTotalMargin = getEnvFloatOrDefault("CAPITAL_MAX_TOTAL_MARGIN", cfg.CapitalConfig.MaxTotalMargin)

	// Follow behaviour
	cfg.FollowConfig.ProfitTargetPct = getEnvFloatOrDefault("FOLLOW_PROFIT_TARGET", cfg.FollowConfig.ProfitTargetPct)
	cfg.FollowConfig.AutoRefollow = getEnvOrDefault("FOLLOW_AUTO_REFOLLOW", boolStr(cfg.FollowConfig.AutoRefollow)) == "true"
	cfg.FollowConfig.DetectManualClose = getEnvOrDefault("FOLLOW_DETECT_MANUAL_CLOSE", boolStr(cfg.FollowConfig.DetectManualClose)) == "true"
	cfg.FollowConfig.PriceTolerancePct = getEnvFloatOrDefault("FOLLOW_PRICE_TOLERANCE", cfg.FollowConfig.PriceTolerancePct)
	cfg.FollowConfig.MaxOpenPositions = getEnvIntOrDefault("FOLLOW_MAX_OPEN_POSITIONS", cfg.FollowConfig.MaxOpenPositions)
	cfg.FollowConfig.MinFreeBalance = getEnvFloatOrDefault("FOLLOW_MIN_FREE_BALANCE", cfg.FollowConfig.MinFreeBalance)
	cfg.FollowConfig.DryRun = getEnvOrDefault("FOLLOW_DRY_RUN", boolStr(cfg.FollowConfig.DryRun)) == "true"

	// Ledger
	cfg.LedgerConfig.Path = getEnvOrDefault("LEDGER_PATH", defaultStr(cfg.LedgerConfig.Path, "order_history.json"))

	// Circuit breaker
	cfg.CircuitBreakerConfig.Enabled = getEnvOrDefault("CIRCUIT_BREAKER_ENABLED", boolStr(cfg.CircuitBreakerConfig.Enabled)) == "true"
	cfg.CircuitBreakerConfig.MaxConsecutiveFailures = getEnvIntOrDefault("CIRCUIT_MAX_CONSECUTIVE_FAILURES", defaultInt(cfg.CircuitBreakerConfig.MaxConsecutiveFailures, 3))
	cfg.CircuitBreakerConfig.CooldownMinutes = getEnvIntOrDefault("CIRCUIT_COOLDOWN_MINUTES", defaultInt(cfg.CircuitBreakerConfig.CooldownMinutes, 10))
	cfg.CircuitBreakerConfig.MaxOrdersPerMinute = getEnvIntOrDefault("CIRCUIT_MAX_ORDERS_PER_MINUTE", defaultInt(cfg.CircuitBreakerConfig.MaxOrdersPerMinute, 20))

	// Notifications
	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", boolStr(cfg.NotificationConfig.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", boolStr(cfg.NotificationConfig.Telegram.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", boolStr(cfg.NotificationConfig.Discord.Enabled)) == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultStr(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolStr(cfg.LoggingConfig.JSONFormat)) == "true"

	// Status server
	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", boolStr(cfg.ServerConfig.Enabled)) == "true"
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", defaultStr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultStr(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))
}

// defaultConfig holds the defaults that must survive a config file which
// simply omits the field. Unmarshalling on top of it lets an explicit
// "enabled": false in the file win over the default.
func defaultConfig() *Config {
	return &Config{
		CircuitBreakerConfig: CircuitBreakerConfig{Enabled: true},
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := defaultConfig()
	if err := json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
