// Package config defines the web3dona configuration and its validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WEB3DONA_* environment variables.
// The unprefixed names in env tags are the variables the first deployments
// used; they are still honoured.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Wallet   WalletConfig   `toml:"wallet"`
	Feed     FeedConfig     `toml:"feed"`
	Oracle   OracleConfig   `toml:"oracle"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode" env:"WEB3DONA_MODE"`
	LogLevel string         `toml:"log_level" env:"WEB3DONA_LOG_LEVEL"`
}

// LedgerConfig points at the chain and the two contracts.
type LedgerConfig struct {
	RPCURL          string `toml:"rpc_url" env:"WEB3DONA_LEDGER_RPC_URL,RPC_URL"`
	DonationAddress string `toml:"donation_address" env:"WEB3DONA_LEDGER_DONATION_ADDRESS,CONTRACT_ADDRESS"`
	OracleAddress   string `toml:"oracle_address" env:"WEB3DONA_LEDGER_ORACLE_ADDRESS,ORACLE_ADDRESS"`
	// ChainID of zero asks the node.
	ChainID            int64         `toml:"chain_id" env:"WEB3DONA_LEDGER_CHAIN_ID"`
	CallTimeout        time.Duration `toml:"call_timeout" env:"WEB3DONA_LEDGER_CALL_TIMEOUT"`
	ConfirmTimeout     time.Duration `toml:"confirm_timeout" env:"WEB3DONA_LEDGER_CONFIRM_TIMEOUT"`
	PollInterval       time.Duration `toml:"poll_interval" env:"WEB3DONA_LEDGER_POLL_INTERVAL"`
	GasLimitMultiplier float64       `toml:"gas_limit_multiplier" env:"WEB3DONA_LEDGER_GAS_LIMIT_MULTIPLIER"`
}

// WalletConfig holds the operator's fallback key used by the background
// oracle updater. Request handlers never use it.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key" env:"WEB3DONA_WALLET_PRIVATE_KEY,PRIVATE_KEY"`
	EncryptedKeyPath string `toml:"encrypted_key_path" env:"WEB3DONA_WALLET_ENCRYPTED_KEY_PATH"`
	KeyPassword      string `toml:"key_password" env:"WEB3DONA_WALLET_KEY_PASSWORD"`
}

// FeedConfig configures the CoinGecko-compatible price feed.
type FeedConfig struct {
	BaseURL     string        `toml:"base_url" env:"WEB3DONA_FEED_BASE_URL"`
	APIKey      string        `toml:"api_key" env:"WEB3DONA_FEED_API_KEY"`
	Coin        string        `toml:"coin" env:"WEB3DONA_FEED_COIN"`
	Fiat        string        `toml:"fiat" env:"WEB3DONA_FEED_FIAT"`
	Timeout     time.Duration `toml:"timeout" env:"WEB3DONA_FEED_TIMEOUT"`
	MaxQuoteAge time.Duration `toml:"max_quote_age" env:"WEB3DONA_FEED_MAX_QUOTE_AGE"`
}

// OracleConfig configures the rate refresh policy.
type OracleConfig struct {
	UpdateInterval time.Duration `toml:"update_interval" env:"WEB3DONA_ORACLE_UPDATE_INTERVAL"`
	RefreshTimeout time.Duration `toml:"refresh_timeout" env:"WEB3DONA_ORACLE_REFRESH_TIMEOUT"`
	// CheckInterval is how often the background updater looks at the gate.
	CheckInterval time.Duration `toml:"check_interval" env:"WEB3DONA_ORACLE_CHECK_INTERVAL"`
	LockTTL       time.Duration `toml:"lock_ttl" env:"WEB3DONA_ORACLE_LOCK_TTL"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled" env:"WEB3DONA_DATABASE_ENABLED"`
	DSN           string `toml:"dsn" env:"WEB3DONA_DATABASE_DSN,DATABASE_URL"`
	Host          string `toml:"host" env:"WEB3DONA_DATABASE_HOST"`
	Port          int    `toml:"port" env:"WEB3DONA_DATABASE_PORT"`
	Name          string `toml:"name" env:"WEB3DONA_DATABASE_NAME"`
	User          string `toml:"user" env:"WEB3DONA_DATABASE_USER"`
	Password      string `toml:"password" env:"WEB3DONA_DATABASE_PASSWORD"`
	SSLMode       string `toml:"ssl_mode" env:"WEB3DONA_DATABASE_SSL_MODE"`
	PoolMaxConns  int    `toml:"pool_max_conns" env:"WEB3DONA_DATABASE_POOL_MAX_CONNS"`
	PoolMinConns  int    `toml:"pool_min_conns" env:"WEB3DONA_DATABASE_POOL_MIN_CONNS"`
	RunMigrations bool   `toml:"run_migrations" env:"WEB3DONA_DATABASE_RUN_MIGRATIONS"`
}

// RedisConfig holds Redis connection parameters and the API rate limit.
type RedisConfig struct {
	Enabled    bool          `toml:"enabled" env:"WEB3DONA_REDIS_ENABLED"`
	Addr       string        `toml:"addr" env:"WEB3DONA_REDIS_ADDR"`
	Password   string        `toml:"password" env:"WEB3DONA_REDIS_PASSWORD"`
	DB         int           `toml:"db" env:"WEB3DONA_REDIS_DB"`
	PoolSize   int           `toml:"pool_size" env:"WEB3DONA_REDIS_POOL_SIZE"`
	MaxRetries int           `toml:"max_retries" env:"WEB3DONA_REDIS_MAX_RETRIES"`
	TLSEnabled bool          `toml:"tls_enabled" env:"WEB3DONA_REDIS_TLS_ENABLED"`
	KeyPrefix  string        `toml:"key_prefix" env:"WEB3DONA_REDIS_KEY_PREFIX"`
	RateLimit  int           `toml:"rate_limit" env:"WEB3DONA_REDIS_RATE_LIMIT"`
	RateWindow time.Duration `toml:"rate_window" env:"WEB3DONA_REDIS_RATE_WINDOW"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled" env:"WEB3DONA_S3_ENABLED"`
	Endpoint       string `toml:"endpoint" env:"WEB3DONA_S3_ENDPOINT"`
	Region         string `toml:"region" env:"WEB3DONA_S3_REGION"`
	Bucket         string `toml:"bucket" env:"WEB3DONA_S3_BUCKET"`
	AccessKey      string `toml:"access_key" env:"WEB3DONA_S3_ACCESS_KEY"`
	SecretKey      string `toml:"secret_key" env:"WEB3DONA_S3_SECRET_KEY"`
	UseSSL         bool   `toml:"use_ssl" env:"WEB3DONA_S3_USE_SSL"`
	ForcePathStyle bool   `toml:"force_path_style" env:"WEB3DONA_S3_FORCE_PATH_STYLE"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host            string        `toml:"host" env:"WEB3DONA_SERVER_HOST"`
	Port            int           `toml:"port" env:"WEB3DONA_SERVER_PORT,PORT"`
	CORSOrigins     []string      `toml:"cors_origins" env:"WEB3DONA_SERVER_CORS_ORIGINS"`
	APIKey          string        `toml:"api_key" env:"WEB3DONA_SERVER_API_KEY"`
	ReadTimeout     time.Duration `toml:"read_timeout" env:"WEB3DONA_SERVER_READ_TIMEOUT"`
	IdleTimeout     time.Duration `toml:"idle_timeout" env:"WEB3DONA_SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"WEB3DONA_SERVER_SHUTDOWN_TIMEOUT"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token" env:"WEB3DONA_NOTIFY_TELEGRAM_TOKEN"`
	TelegramChatID    string   `toml:"telegram_chat_id" env:"WEB3DONA_NOTIFY_TELEGRAM_CHAT_ID"`
	DiscordWebhookURL string   `toml:"discord_webhook_url" env:"WEB3DONA_NOTIFY_DISCORD_WEBHOOK_URL"`
	Events            []string `toml:"events" env:"WEB3DONA_NOTIFY_EVENTS"`
}

// WriteTimeout is long enough for the slowest settlement: waiting out an
// oracle refresh, then reading the rate, building and sending the donation
// and waiting for its confirmation.
func (s ServerConfig) WriteTimeout(ledger LedgerConfig, oracle OracleConfig) time.Duration {
	return oracle.RefreshTimeout + ledger.ConfirmTimeout + 3*ledger.CallTimeout + 15*time.Second
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			RPCURL:             "http://localhost:8545",
			CallTimeout:        15 * time.Second,
			ConfirmTimeout:     2 * time.Minute,
			PollInterval:       2 * time.Second,
			GasLimitMultiplier: 1.2,
		},
		Feed: FeedConfig{
			BaseURL:     "https://api.coingecko.com/api/v3",
			Coin:        "ethereum",
			Fiat:        "idr",
			Timeout:     10 * time.Second,
			MaxQuoteAge: 15 * time.Minute,
		},
		Oracle: OracleConfig{
			UpdateInterval: 5 * time.Minute,
			RefreshTimeout: 3 * time.Minute,
			CheckInterval:  time.Minute,
			LockTTL:        4 * time.Minute,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Name:          "web3dona",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "web3dona",
			RateLimit:  30,
			RateWindow: time.Minute,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "web3dona-receipts",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:            3000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Notify: NotifyConfig{
			Events: []string{"donation_settled", "withdrawal_settled", "rate_refresh_failed", "settlement_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"updater": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: server, updater, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Ledger
	if c.Ledger.RPCURL == "" {
		add("ledger: rpc_url must not be empty")
	}
	if !common.IsHexAddress(c.Ledger.DonationAddress) {
		add("ledger: donation_address %q is not a hex address", c.Ledger.DonationAddress)
	}
	if !common.IsHexAddress(c.Ledger.OracleAddress) {
		add("ledger: oracle_address %q is not a hex address", c.Ledger.OracleAddress)
	}
	if c.Ledger.ChainID < 0 {
		add("ledger: chain_id must not be negative")
	}
	if c.Ledger.ConfirmTimeout <= 0 || c.Ledger.CallTimeout <= 0 || c.Ledger.PollInterval <= 0 {
		add("ledger: call_timeout, confirm_timeout and poll_interval must be > 0")
	}
	if c.Ledger.GasLimitMultiplier < 1 {
		add("ledger: gas_limit_multiplier must be >= 1, got %g", c.Ledger.GasLimitMultiplier)
	}

	// Wallet: the background updater cannot run without a fallback key.
	if mode == "updater" && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		add("wallet: either private_key or encrypted_key_path must be set for mode updater")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required when encrypted_key_path is set")
	}

	// Feed
	if _, err := url.ParseRequestURI(c.Feed.BaseURL); err != nil {
		add("feed: base_url %q is not a URL", c.Feed.BaseURL)
	}
	if c.Feed.Coin == "" || c.Feed.Fiat == "" {
		add("feed: coin and fiat must not be empty")
	}

	// Oracle
	if c.Oracle.UpdateInterval <= 0 {
		add("oracle: update_interval must be > 0")
	}
	if c.Oracle.RefreshTimeout <= 0 {
		add("oracle: refresh_timeout must be > 0")
	}
	if c.Redis.Enabled && c.Oracle.LockTTL < c.Oracle.RefreshTimeout {
		add("oracle: lock_ttl must be >= refresh_timeout")
	}

	// Database
	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				add("database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				add("database: port must be 1-65535, got %d", c.Database.Port)
			}
			if c.Database.Name == "" {
				add("database: name must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			add("database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
			add("database: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if c.Redis.RateLimit > 0 && c.Redis.RateWindow <= 0 {
			add("redis: rate_window must be > 0 when rate_limit is set")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	// Server
	if mode != "updater" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
