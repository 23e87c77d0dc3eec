package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/predictpulse/roundbot/internal/blob/s3"
	"github.com/predictpulse/roundbot/internal/cache/redis"
	"github.com/predictpulse/roundbot/internal/config"
	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/notify"
	"github.com/predictpulse/roundbot/internal/platform/coingecko"
	"github.com/predictpulse/roundbot/internal/pricecache"
	"github.com/predictpulse/roundbot/internal/rounds"
	"github.com/predictpulse/roundbot/internal/scheduler"
	"github.com/predictpulse/roundbot/internal/store/postgres"
	"github.com/predictpulse/roundbot/internal/users"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// In-memory engine state
	Rounds *rounds.Registry
	Prices *pricecache.Cache
	Users  *users.Registry

	// Price feed
	Feed      domain.PriceFeed
	Refresher *pricecache.Refresher

	// Redis
	SignalBus   domain.SignalBus
	PriceMirror domain.PriceMirror

	// Durable stores
	RoundArchive domain.RoundArchive

	// Cold storage
	ColdArchiver scheduler.ColdArchiver

	// Notifications
	Notifier *notify.Notifier
}

// trackedAssets converts the configured asset list to domain assets.
func trackedAssets(cfg *config.Config) []domain.Asset {
	assets := make([]domain.Asset, 0, len(cfg.Engine.TrackedAssets))
	for _, a := range cfg.Engine.TrackedAssets {
		assets = append(assets, domain.Asset{Symbol: a.Symbol, FeedKey: a.FeedKey})
	}
	return assets
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	userStore := postgres.NewUserStore(pool)
	deps.RoundArchive = postgres.NewRoundArchive(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.PriceMirror = redis.NewPriceMirror(redisClient)

	// --- S3 cold storage (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.ColdArchiver = s3blob.NewArchiver(s3Client, logger)
	}

	// --- In-memory engine state ---
	deps.Rounds = rounds.New(cfg.Engine.RoundDuration.Duration)
	deps.Prices = pricecache.New()
	deps.Users = users.NewRegistry(userStore, logger)

	// --- Price feed ---
	deps.Feed = coingecko.New(
		cfg.Feed.BaseURL,
		cfg.Feed.VsCurrency,
		cfg.Feed.APIKey,
		cfg.Feed.Timeout.Duration,
	)
	deps.Refresher = pricecache.NewRefresher(
		deps.Prices,
		deps.Feed,
		deps.PriceMirror,
		trackedAssets(cfg),
		cfg.Engine.PriceRefreshInterval.Duration,
		logger,
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
