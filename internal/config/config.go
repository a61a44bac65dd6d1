// Package config defines the top-level configuration for courtside and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by COURTSIDE_* environment
// variables.
type Config struct {
	Chain      ChainConfig      `toml:"chain"`
	Wallet     WalletConfig     `toml:"wallet"`
	Indexer    IndexerConfig    `toml:"indexer"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Sportsfeed SportsfeedConfig `toml:"sportsfeed"`
	Forecast   ForecastConfig   `toml:"forecast"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ChainConfig holds blockchain RPC endpoints and contract parameters.
type ChainConfig struct {
	RPCURL         string `toml:"rpc_url"`
	WSURL          string `toml:"ws_url"`
	ChainID        int64  `toml:"chain_id"`
	FactoryAddress string `toml:"factory_address"`
}

// WalletConfig holds the settlement wallet credentials. Either a raw hex key
// or an encrypted key file plus password.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// IndexerConfig holds event-ingestion parameters.
type IndexerConfig struct {
	Enabled bool `toml:"enabled"`

	// StartBlock is the absolute backfill start height. Zero means "start
	// from the current chain head" (no historical backfill).
	StartBlock uint64 `toml:"start_block"`

	// BatchSize is the width in blocks of each backfill/poll batch.
	BatchSize uint64 `toml:"batch_size"`

	// PollInterval is the live-tail poll cadence.
	PollInterval duration `toml:"poll_interval"`
}

// ResolverConfig holds resolution scheduler parameters.
type ResolverConfig struct {
	Enabled bool `toml:"enabled"`

	// Interval is the scheduler tick cadence; it is also the only retry
	// policy for not-yet-resolvable markets.
	Interval duration `toml:"interval"`

	// WindowMinutes bounds the due-for-resolution query around now.
	WindowMinutes int `toml:"window_minutes"`
}

// SportsfeedConfig holds the sports-data provider endpoint, credential, and
// the adapter's rate-limit and cache parameters.
type SportsfeedConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`

	RateLimitWindow duration `toml:"rate_limit_window"`
	RateLimitMax    int      `toml:"rate_limit_max"`

	// FinishedTTL caches final results (immutable once finished);
	// ScheduleTTL caches schedule-style lookups (subject to change).
	FinishedTTL duration `toml:"finished_ttl"`
	ScheduleTTL duration `toml:"schedule_ttl"`
}

// ForecastConfig holds the external forecasting service endpoint. An empty
// URL disables the forecast read path.
type ForecastConfig struct {
	URL     string   `toml:"url"`
	Timeout duration `toml:"timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIKey guards mutating endpoints (manual resolve). Empty disables auth.
	APIKey string `toml:"api_key"`

	// RateLimitPerMinute caps requests per client IP. Zero disables limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:  "http://localhost:8545",
			ChainID: 137,
		},
		Indexer: IndexerConfig{
			Enabled:      true,
			StartBlock:   0,
			BatchSize:    2000,
			PollInterval: duration{15 * time.Second},
		},
		Resolver: ResolverConfig{
			Enabled:       false,
			Interval:      duration{time.Minute},
			WindowMinutes: 60,
		},
		Sportsfeed: SportsfeedConfig{
			BaseURL:         "https://api.sportsfeed.io/v2",
			RateLimitWindow: duration{15 * time.Minute},
			RateLimitMax:    100,
			FinishedTTL:     duration{24 * time.Hour},
			ScheduleTTL:     duration{10 * time.Minute},
		},
		Forecast: ForecastConfig{
			Timeout: duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "courtside",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "courtside-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 240,
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "indexer_degraded", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"index":   true,
	"resolve": true,
	"serve":   true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// needsChain reports whether the mode talks to the blockchain.
func needsChain(mode string) bool {
	switch mode {
	case "index", "resolve", "full":
		return true
	default:
		return false
	}
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. Component-level soft
// failures (resolver enabled without a provider credential, empty forecast
// URL) are intentionally not validated here: those components degrade to a
// logged no-op at start instead of failing the process.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: index, resolve, serve, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if needsChain(strings.ToLower(c.Mode)) {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty for mode "+c.Mode)
		}
		if c.Chain.FactoryAddress == "" {
			errs = append(errs, "chain: factory_address must not be empty for mode "+c.Mode)
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		if c.Indexer.BatchSize == 0 {
			errs = append(errs, "indexer: batch_size must be > 0")
		}
		if c.Indexer.PollInterval.Duration <= 0 {
			errs = append(errs, "indexer: poll_interval must be > 0")
		}
	}

	if c.Resolver.Enabled {
		if c.Resolver.Interval.Duration <= 0 {
			errs = append(errs, "resolver: interval must be > 0 when enabled")
		}
		if c.Resolver.WindowMinutes <= 0 {
			errs = append(errs, "resolver: window_minutes must be > 0 when enabled")
		}
	}

	if c.Sportsfeed.RateLimitMax <= 0 {
		errs = append(errs, "sportsfeed: rate_limit_max must be > 0")
	}
	if c.Sportsfeed.RateLimitWindow.Duration <= 0 {
		errs = append(errs, "sportsfeed: rate_limit_window must be > 0")
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1 when enabled")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
