package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COURTSIDE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COURTSIDE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "COURTSIDE_CHAIN_RPC_URL")
	setStr(&cfg.Chain.WSURL, "COURTSIDE_CHAIN_WS_URL")
	setInt64(&cfg.Chain.ChainID, "COURTSIDE_CHAIN_ID")
	setStr(&cfg.Chain.FactoryAddress, "COURTSIDE_CHAIN_FACTORY_ADDRESS")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "COURTSIDE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "COURTSIDE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "COURTSIDE_WALLET_KEY_PASSWORD")

	// ── Indexer ──
	setBool(&cfg.Indexer.Enabled, "COURTSIDE_INDEXER_ENABLED")
	setUint64(&cfg.Indexer.StartBlock, "COURTSIDE_INDEXER_START_BLOCK")
	setUint64(&cfg.Indexer.BatchSize, "COURTSIDE_INDEXER_BATCH_SIZE")
	setDuration(&cfg.Indexer.PollInterval, "COURTSIDE_INDEXER_POLL_INTERVAL")

	// ── Resolver ──
	setBool(&cfg.Resolver.Enabled, "COURTSIDE_RESOLVER_ENABLED")
	setDuration(&cfg.Resolver.Interval, "COURTSIDE_RESOLVER_INTERVAL")
	setInt(&cfg.Resolver.WindowMinutes, "COURTSIDE_RESOLVER_WINDOW_MINUTES")

	// ── Sportsfeed ──
	setStr(&cfg.Sportsfeed.BaseURL, "COURTSIDE_SPORTSFEED_BASE_URL")
	setStr(&cfg.Sportsfeed.APIKey, "COURTSIDE_SPORTSFEED_API_KEY")
	setDuration(&cfg.Sportsfeed.RateLimitWindow, "COURTSIDE_SPORTSFEED_RATE_LIMIT_WINDOW")
	setInt(&cfg.Sportsfeed.RateLimitMax, "COURTSIDE_SPORTSFEED_RATE_LIMIT_MAX")
	setDuration(&cfg.Sportsfeed.FinishedTTL, "COURTSIDE_SPORTSFEED_FINISHED_TTL")
	setDuration(&cfg.Sportsfeed.ScheduleTTL, "COURTSIDE_SPORTSFEED_SCHEDULE_TTL")

	// ── Forecast ──
	setStr(&cfg.Forecast.URL, "COURTSIDE_FORECAST_URL")
	setDuration(&cfg.Forecast.Timeout, "COURTSIDE_FORECAST_TIMEOUT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "COURTSIDE_DATABASE_DSN")
	setStr(&cfg.Database.Host, "COURTSIDE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "COURTSIDE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "COURTSIDE_DATABASE_NAME")
	setStr(&cfg.Database.User, "COURTSIDE_DATABASE_USER")
	setStr(&cfg.Database.Password, "COURTSIDE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "COURTSIDE_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "COURTSIDE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "COURTSIDE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "COURTSIDE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COURTSIDE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COURTSIDE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COURTSIDE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COURTSIDE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COURTSIDE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COURTSIDE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COURTSIDE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COURTSIDE_S3_REGION")
	setStr(&cfg.S3.Bucket, "COURTSIDE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COURTSIDE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COURTSIDE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COURTSIDE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COURTSIDE_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "COURTSIDE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "COURTSIDE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "COURTSIDE_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "COURTSIDE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COURTSIDE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "COURTSIDE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "COURTSIDE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "COURTSIDE_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COURTSIDE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COURTSIDE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COURTSIDE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COURTSIDE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "COURTSIDE_MODE")
	setStr(&cfg.LogLevel, "COURTSIDE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
