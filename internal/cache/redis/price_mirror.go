package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predictpulse/roundbot/internal/domain"
)

// PriceMirror implements domain.PriceMirror using Redis hashes. Each asset's
// snapshot lives at key "price:{symbol}" so dashboards and sibling processes
// can read the latest prices without touching the engine. The in-memory
// price cache stays authoritative; the mirror is best-effort.
type PriceMirror struct {
	rdb *redis.Client
}

// NewPriceMirror creates a PriceMirror backed by the given Client.
func NewPriceMirror(c *Client) *PriceMirror {
	return &PriceMirror{rdb: c.Underlying()}
}

func priceKey(symbol string) string {
	return "price:" + symbol
}

// SetPrice stores an asset's latest snapshot.
func (m *PriceMirror) SetPrice(ctx context.Context, symbol string, snap domain.PriceSnapshot) error {
	fields := map[string]interface{}{
		"price":      strconv.FormatFloat(snap.Price, 'f', -1, 64),
		"change_24h": strconv.FormatFloat(snap.Change24h, 'f', -1, 64),
		"market_cap": strconv.FormatFloat(snap.MarketCap, 'f', -1, 64),
		"volume_24h": strconv.FormatFloat(snap.Volume24h, 'f', -1, 64),
		"ts":         strconv.FormatInt(snap.CapturedAt.UnixNano(), 10),
	}
	if err := m.rdb.HSet(ctx, priceKey(symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", symbol, err)
	}
	return nil
}

// GetPrice retrieves an asset's latest mirrored snapshot. It returns
// domain.ErrNotFound when the key does not exist.
func (m *PriceMirror) GetPrice(ctx context.Context, symbol string) (domain.PriceSnapshot, error) {
	vals, err := m.rdb.HGetAll(ctx, priceKey(symbol)).Result()
	if err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("redis: get price %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.PriceSnapshot{}, domain.ErrNotFound
	}

	snap := domain.PriceSnapshot{Symbol: symbol}
	if snap.Price, err = parseField(vals, "price"); err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("redis: price %s: %w", symbol, err)
	}
	snap.Change24h, _ = parseField(vals, "change_24h")
	snap.MarketCap, _ = parseField(vals, "market_cap")
	snap.Volume24h, _ = parseField(vals, "volume_24h")

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.PriceSnapshot{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}
	snap.CapturedAt = time.Unix(0, tsNano)

	return snap, nil
}

// parseField reads one float field from a Redis hash result.
func parseField(vals map[string]string, field string) (float64, error) {
	s, ok := vals[field]
	if !ok {
		return 0, fmt.Errorf("missing field %q: %w", field, domain.ErrNotFound)
	}
	return strconv.ParseFloat(s, 64)
}

// Compile-time interface check.
var _ domain.PriceMirror = (*PriceMirror)(nil)
