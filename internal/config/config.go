package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	MarketFeed  MarketFeedConfig `mapstructure:"market_feed"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	Collector   CollectorConfig  `mapstructure:"collector"`
	Backtest    BacktestConfig   `mapstructure:"backtest"`
	Pipeline    PipelineConfig   `mapstructure:"pipeline"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Telegram    TelegramConfig   `mapstructure:"telegram"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	Security    SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MarketFeedConfig points at the sidecar serving candles, commercial
// positioning and sentiment survey readings.
type MarketFeedConfig struct {
	ServiceURL string   `mapstructure:"service_url"`
	Timeout    int      `mapstructure:"timeout"`
	Symbols    []string `mapstructure:"symbols"`
	COTMarket  string   `mapstructure:"cot_market"`
}

// ClassifierConfig points at the model sidecar that scores feature rows.
type ClassifierConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	Timeout    int    `mapstructure:"timeout"`
}

type CollectorConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	BackfillDays    int  `mapstructure:"backfill_days"`
	MaxRetries      int  `mapstructure:"max_retries"`
}

// BacktestConfig is the configuration surface consumed by the simulator.
type BacktestConfig struct {
	ProbabilityThreshold float64 `mapstructure:"probability_threshold"`
	HoldDays             int     `mapstructure:"hold_days"`
	TransactionCost      float64 `mapstructure:"transaction_cost"`
}

type PipelineConfig struct {
	Symbol         string  `mapstructure:"symbol"`
	MinProbability float64 `mapstructure:"min_probability"`
	DigestSize     int     `mapstructure:"digest_size"`
}

type CacheConfig struct {
	SignalTTLMinutes  int `mapstructure:"signal_ttl_minutes"`
	SummaryTTLMinutes int `mapstructure:"summary_ttl_minutes"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	TraceExporter  string `mapstructure:"trace_exporter"`
	LogLevel       string `mapstructure:"log_level"`
}

type SecurityConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry    string `mapstructure:"jwt_expiry"`
	BcryptCost   int    `mapstructure:"bcrypt_cost"`
	AdminKeyHash string `mapstructure:"admin_key_hash" json:"-" yaml:"-"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("security.admin_key_hash", "ADMIN_KEY_HASH"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_KEY_HASH environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	environment := strings.ToLower(config.Environment)

	// Validate JWT secret in non-development environments
	if environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	// Validate JWT expiry duration
	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return nil, fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	// Validate bcrypt cost parameter
	if config.Security.BcryptCost < bcrypt.MinCost || config.Security.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, config.Security.BcryptCost)
	}

	if err := validateBacktest(config.Backtest); err != nil {
		return nil, err
	}

	if config.Pipeline.MinProbability < 0 || config.Pipeline.MinProbability > 1 {
		return nil, fmt.Errorf("pipeline min_probability must be within [0, 1], got %v",
			config.Pipeline.MinProbability)
	}

	if config.Collector.Enabled && config.Collector.IntervalMinutes < 1 {
		return nil, fmt.Errorf("collector interval must be at least 1 minute, got %d",
			config.Collector.IntervalMinutes)
	}

	if len(config.MarketFeed.Symbols) == 0 {
		return nil, errors.New("market_feed.symbols must name at least one symbol")
	}

	// Update config with normalized environment
	config.Environment = environment

	return &config, nil
}

// validateBacktest enforces the bounds of the simulator's configuration
// surface before any run can start with it.
func validateBacktest(cfg BacktestConfig) error {
	if cfg.ProbabilityThreshold < 0 || cfg.ProbabilityThreshold > 1 {
		return fmt.Errorf("backtest probability_threshold must be within [0, 1], got %v",
			cfg.ProbabilityThreshold)
	}
	if cfg.HoldDays < 1 {
		return fmt.Errorf("backtest hold_days must be at least 1, got %d", cfg.HoldDays)
	}
	if cfg.TransactionCost < 0 {
		return fmt.Errorf("backtest transaction_cost must not be negative, got %v",
			cfg.TransactionCost)
	}
	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "sentipulse")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Market feed sidecar
	viper.SetDefault("market_feed.service_url", "http://localhost:3001")
	viper.SetDefault("market_feed.timeout", 30)
	viper.SetDefault("market_feed.symbols", []string{"SPY", "^VIX"})
	viper.SetDefault("market_feed.cot_market", "S&P 500 Consolidated")

	// Classifier sidecar
	viper.SetDefault("classifier.service_url", "http://localhost:3002")
	viper.SetDefault("classifier.timeout", 60)

	// Collector
	viper.SetDefault("collector.enabled", true)
	viper.SetDefault("collector.interval_minutes", 360)
	viper.SetDefault("collector.backfill_days", 730)
	viper.SetDefault("collector.max_retries", 3)

	// Backtest
	viper.SetDefault("backtest.probability_threshold", 0.70)
	viper.SetDefault("backtest.hold_days", 5)
	viper.SetDefault("backtest.transaction_cost", 0.001)

	// Pipeline
	viper.SetDefault("pipeline.symbol", "SPY")
	viper.SetDefault("pipeline.min_probability", 0.70)
	viper.SetDefault("pipeline.digest_size", 10)

	// Cache
	viper.SetDefault("cache.signal_ttl_minutes", 15)
	viper.SetDefault("cache.summary_ttl_minutes", 60)

	// Telegram
	viper.SetDefault("telegram.enabled", false)
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "sentipulse-go")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.trace_exporter", "stdout")
	viper.SetDefault("telemetry.log_level", "info")

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)
	viper.SetDefault("security.admin_key_hash", "")
}
