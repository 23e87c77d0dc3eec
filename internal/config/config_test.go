package config

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Engine.RoundDuration.Duration)
	assert.Len(t, cfg.Engine.TrackedAssets, 3)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Engine.TrackedAssets = nil
	cfg.Engine.RewardPerWin = 0
	cfg.Server.Port = 99999

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "turbo"`)
	assert.Contains(t, err.Error(), "tracked_assets must not be empty")
	assert.Contains(t, err.Error(), "reward_per_win must be > 0")
	assert.Contains(t, err.Error(), "port must be 1-65535")
}

func TestValidate_RejectsDuplicateSymbols(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.TrackedAssets = []AssetConfig{
		{Symbol: "BTC", FeedKey: "bitcoin"},
		{Symbol: "BTC", FeedKey: "bitcoin-cash"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate symbol "BTC"`)
}

func TestValidate_ExpirySweepBoundedByRoundDuration(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.ExpirySweepInterval = duration{10 * time.Minute}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expiry_sweep_interval must not exceed round_duration")
}

func TestValidate_DSNSkipsHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/roundbot"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""

	assert.NoError(t, cfg.Validate())
}

func TestDuration_TOMLDecoding(t *testing.T) {
	var cfg Config
	_, err := toml.Decode(`
[engine]
round_duration = "90s"
price_refresh_interval = "15s"
`, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Engine.RoundDuration.Duration)
	assert.Equal(t, 15*time.Second, cfg.Engine.PriceRefreshInterval.Duration)
}

func TestDuration_RejectsGarbage(t *testing.T) {
	var cfg Config
	_, err := toml.Decode(`
[engine]
round_duration = "five minutes"
`, &cfg)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROUNDBOT_MODE", "engine")
	t.Setenv("ROUNDBOT_ENGINE_ROUND_DURATION", "2m")
	t.Setenv("ROUNDBOT_ENGINE_REWARD_PER_WIN", "250")
	t.Setenv("ROUNDBOT_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("ROUNDBOT_REDIS_DB", "3")
	t.Setenv("ROUNDBOT_ARCHIVE_ENABLED", "true")
	t.Setenv("ROUNDBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "engine", cfg.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Engine.RoundDuration.Duration)
	assert.Equal(t, 250.0, cfg.Engine.RewardPerWin)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestEnvOverrides_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("ROUNDBOT_ENGINE_ROUND_DURATION", "not-a-duration")
	t.Setenv("ROUNDBOT_REDIS_DB", "not-a-number")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 5*time.Minute, cfg.Engine.RoundDuration.Duration)
	assert.Equal(t, 0, cfg.Redis.DB)
}
