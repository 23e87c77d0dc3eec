// Package config defines the configuration for the prediction round engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ROUNDBOT_* environment
// variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Feed     FeedConfig     `toml:"feed"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// AssetConfig declares one tracked asset: the display symbol and the key the
// price feed provider knows it by.
type AssetConfig struct {
	Symbol  string `toml:"symbol"`
	FeedKey string `toml:"feed_key"`
}

// EngineConfig holds the round lifecycle parameters.
type EngineConfig struct {
	TrackedAssets         []AssetConfig `toml:"tracked_assets"`
	RoundDuration         duration      `toml:"round_duration"`
	PriceRefreshInterval  duration      `toml:"price_refresh_interval"`
	CreationSweepInterval duration      `toml:"creation_sweep_interval"`
	ExpirySweepInterval   duration      `toml:"expiry_sweep_interval"`
	DigestInterval        duration      `toml:"digest_interval"`
	RetentionWindow       duration      `toml:"retention_window"`
	RewardPerWin          float64       `toml:"reward_per_win"`
}

// FeedConfig holds price feed provider parameters.
type FeedConfig struct {
	BaseURL    string   `toml:"base_url"`
	VsCurrency string   `toml:"vs_currency"`
	APIKey     string   `toml:"api_key"`
	Timeout    duration `toml:"timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// ArchiveConfig holds cold-storage parameters for evicted rounds.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
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
		Engine: EngineConfig{
			TrackedAssets: []AssetConfig{
				{Symbol: "BTC", FeedKey: "bitcoin"},
				{Symbol: "ETH", FeedKey: "ethereum"},
				{Symbol: "SOL", FeedKey: "solana"},
			},
			RoundDuration:         duration{5 * time.Minute},
			PriceRefreshInterval:  duration{30 * time.Second},
			CreationSweepInterval: duration{15 * time.Second},
			ExpirySweepInterval:   duration{5 * time.Second},
			DigestInterval:        duration{time.Hour},
			RetentionWindow:       duration{10 * time.Minute},
			RewardPerWin:          100,
		},
		Feed: FeedConfig{
			BaseURL:    "https://api.coingecko.com/api/v3",
			VsCurrency: "usd",
			Timeout:    duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "roundbot",
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
			TLSEnabled: false,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "roundbot-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"round_open", "round_resolved", "digest"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"engine": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if len(c.Engine.TrackedAssets) == 0 {
		errs = append(errs, "engine: tracked_assets must not be empty")
	}
	seen := make(map[string]bool, len(c.Engine.TrackedAssets))
	for i, a := range c.Engine.TrackedAssets {
		if strings.TrimSpace(a.Symbol) == "" {
			errs = append(errs, fmt.Sprintf("engine: tracked_assets[%d]: symbol must not be empty", i))
		}
		if strings.TrimSpace(a.FeedKey) == "" {
			errs = append(errs, fmt.Sprintf("engine: tracked_assets[%d]: feed_key must not be empty", i))
		}
		if seen[a.Symbol] {
			errs = append(errs, fmt.Sprintf("engine: tracked_assets: duplicate symbol %q", a.Symbol))
		}
		seen[a.Symbol] = true
	}
	if c.Engine.RoundDuration.Duration <= 0 {
		errs = append(errs, "engine: round_duration must be > 0")
	}
	if c.Engine.PriceRefreshInterval.Duration <= 0 {
		errs = append(errs, "engine: price_refresh_interval must be > 0")
	}
	if c.Engine.CreationSweepInterval.Duration <= 0 {
		errs = append(errs, "engine: creation_sweep_interval must be > 0")
	}
	if c.Engine.ExpirySweepInterval.Duration <= 0 {
		errs = append(errs, "engine: expiry_sweep_interval must be > 0")
	}
	if c.Engine.ExpirySweepInterval.Duration > c.Engine.RoundDuration.Duration {
		errs = append(errs, "engine: expiry_sweep_interval must not exceed round_duration")
	}
	if c.Engine.RetentionWindow.Duration < 0 {
		errs = append(errs, "engine: retention_window must be >= 0")
	}
	if c.Engine.RewardPerWin <= 0 {
		errs = append(errs, "engine: reward_per_win must be > 0")
	}

	// Feed
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	}
	if c.Feed.VsCurrency == "" {
		errs = append(errs, "feed: vs_currency must not be empty")
	}
	if c.Feed.Timeout.Duration <= 0 {
		errs = append(errs, "feed: timeout must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			errs = append(errs, "archive: endpoint must not be empty when enabled")
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
	}

	// Server
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
