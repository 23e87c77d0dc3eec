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
// built-in defaults, applies ROUNDBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ROUNDBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setDuration(&cfg.Engine.RoundDuration, "ROUNDBOT_ENGINE_ROUND_DURATION")
	setDuration(&cfg.Engine.PriceRefreshInterval, "ROUNDBOT_ENGINE_PRICE_REFRESH_INTERVAL")
	setDuration(&cfg.Engine.CreationSweepInterval, "ROUNDBOT_ENGINE_CREATION_SWEEP_INTERVAL")
	setDuration(&cfg.Engine.ExpirySweepInterval, "ROUNDBOT_ENGINE_EXPIRY_SWEEP_INTERVAL")
	setDuration(&cfg.Engine.DigestInterval, "ROUNDBOT_ENGINE_DIGEST_INTERVAL")
	setDuration(&cfg.Engine.RetentionWindow, "ROUNDBOT_ENGINE_RETENTION_WINDOW")
	setFloat64(&cfg.Engine.RewardPerWin, "ROUNDBOT_ENGINE_REWARD_PER_WIN")

	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "ROUNDBOT_FEED_BASE_URL")
	setStr(&cfg.Feed.VsCurrency, "ROUNDBOT_FEED_VS_CURRENCY")
	setStr(&cfg.Feed.APIKey, "ROUNDBOT_FEED_API_KEY")
	setDuration(&cfg.Feed.Timeout, "ROUNDBOT_FEED_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ROUNDBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ROUNDBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ROUNDBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ROUNDBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ROUNDBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ROUNDBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ROUNDBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ROUNDBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ROUNDBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ROUNDBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ROUNDBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ROUNDBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ROUNDBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ROUNDBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ROUNDBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ROUNDBOT_REDIS_TLS_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ROUNDBOT_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "ROUNDBOT_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "ROUNDBOT_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "ROUNDBOT_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "ROUNDBOT_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "ROUNDBOT_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "ROUNDBOT_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "ROUNDBOT_ARCHIVE_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ROUNDBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ROUNDBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ROUNDBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ROUNDBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ROUNDBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ROUNDBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ROUNDBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ROUNDBOT_MODE")
	setStr(&cfg.LogLevel, "ROUNDBOT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
