// Package pricecache holds the latest observed price snapshot per tracked
// asset and drives the periodic refresh from the price feed provider.
package pricecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
)

// Cache is the authoritative in-memory store of price snapshots, one per
// tracked asset. It is safe for concurrent use. A snapshot is absent until
// the first successful refresh for that asset; downstream consumers must
// treat absence as "defer", not as an error.
type Cache struct {
	mu        sync.RWMutex
	snapshots map[string]domain.PriceSnapshot // keyed by symbol
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		snapshots: make(map[string]domain.PriceSnapshot),
	}
}

// Get returns the latest snapshot for a symbol. The second return value is
// false when no successful refresh has happened yet for that asset.
func (c *Cache) Get(symbol string) (domain.PriceSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snapshots[symbol]
	return snap, ok
}

// All returns a copy of every cached snapshot.
func (c *Cache) All() []domain.PriceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.PriceSnapshot, 0, len(c.snapshots))
	for _, snap := range c.snapshots {
		out = append(out, snap)
	}
	return out
}

// set overwrites an asset's snapshot whole. Refresh is all-or-nothing per
// asset per tick; there is no partial field update.
func (c *Cache) set(snap domain.PriceSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snap.Symbol] = snap
}

// Refresher periodically pulls quotes from the price feed provider into the
// Cache. Per-asset partial success is explicit: assets missing from a
// provider response keep their previous snapshot untouched.
type Refresher struct {
	cache    *Cache
	feed     domain.PriceFeed
	mirror   domain.PriceMirror // optional, best-effort
	assets   []domain.Asset
	interval time.Duration
	backoff  time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a Refresher for the given tracked assets. mirror may
// be nil when no out-of-process price mirror is configured.
func NewRefresher(
	cache *Cache,
	feed domain.PriceFeed,
	mirror domain.PriceMirror,
	assets []domain.Asset,
	interval time.Duration,
	logger *slog.Logger,
) *Refresher {
	return &Refresher{
		cache:    cache,
		feed:     feed,
		mirror:   mirror,
		assets:   assets,
		interval: interval,
		backoff:  10 * time.Second,
		logger:   logger.With(slog.String("component", "price_refresher")),
	}
}

// Warm seeds the cache from the out-of-process price mirror for assets that
// have no snapshot yet, so a restarted process serves prices before the
// first provider round-trip completes. Mirror misses and failures are
// skipped; the next refresh overwrites whatever Warm loaded.
func (r *Refresher) Warm(ctx context.Context) {
	if r.mirror == nil {
		return
	}
	loaded := 0
	for _, a := range r.assets {
		if _, ok := r.cache.Get(a.Symbol); ok {
			continue
		}
		snap, err := r.mirror.GetPrice(ctx, a.Symbol)
		if err != nil {
			continue
		}
		r.cache.set(snap)
		loaded++
	}
	if loaded > 0 {
		r.logger.InfoContext(ctx, "price cache warmed from mirror",
			slog.Int("loaded", loaded),
		)
	}
}

// Run warms the cache from the mirror, refreshes once immediately, and then
// refreshes on every tick until ctx is cancelled. A transient provider
// failure delays only the next attempt by a single bounded backoff; the
// regular cadence is never altered permanently.
func (r *Refresher) Run(ctx context.Context) error {
	r.Warm(ctx)

	if err := r.RefreshOnce(ctx); err != nil {
		r.logger.WarnContext(ctx, "initial price refresh failed",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("price refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "price refresh failed, backing off",
					slog.String("error", err.Error()),
					slog.Duration("backoff", r.backoff),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(r.backoff):
				}
			}
		}
	}
}

// RefreshOnce performs a single refresh pass. It returns an error only when
// the provider call itself failed; per-asset misses are logged and the
// remaining assets are still updated.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	keys := make([]string, 0, len(r.assets))
	for _, a := range r.assets {
		keys = append(keys, a.FeedKey)
	}

	quotes, err := r.feed.FetchPrices(ctx, keys)
	if err != nil {
		return fmt.Errorf("pricecache: fetch prices: %w", err)
	}

	now := time.Now().UTC()
	updated := 0
	for _, a := range r.assets {
		q, ok := quotes[a.FeedKey]
		if !ok {
			// Missing key means this asset's refresh failed; leave its
			// previous snapshot in place and try again next tick.
			r.logger.DebugContext(ctx, "asset missing from provider response",
				slog.String("symbol", a.Symbol),
				slog.String("feed_key", a.FeedKey),
			)
			continue
		}

		snap := domain.PriceSnapshot{
			Symbol:     a.Symbol,
			Price:      q.Price,
			Change24h:  q.Change24h,
			MarketCap:  q.MarketCap,
			Volume24h:  q.Volume24h,
			CapturedAt: now,
		}
		r.cache.set(snap)
		updated++

		if r.mirror != nil {
			if merr := r.mirror.SetPrice(ctx, a.Symbol, snap); merr != nil {
				r.logger.WarnContext(ctx, "price mirror update failed",
					slog.String("symbol", a.Symbol),
					slog.String("error", merr.Error()),
				)
			}
		}
	}

	r.logger.DebugContext(ctx, "price refresh complete",
		slog.Int("updated", updated),
		slog.Int("tracked", len(r.assets)),
	)
	return nil
}
