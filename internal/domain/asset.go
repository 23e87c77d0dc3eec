package domain

import "time"

// Asset is a tracked symbol with its external price-feed key. The tracked
// set is fixed at startup and never mutated afterwards.
type Asset struct {
	Symbol  string // e.g. "BTC"
	FeedKey string // provider-side identifier, e.g. "bitcoin"
}

// Quote is a single asset's price data as returned by the feed provider.
type Quote struct {
	Price     float64
	Change24h float64
	MarketCap float64
	Volume24h float64
}

// PriceSnapshot is the most recently observed quote for an asset. A snapshot
// is written whole on each successful refresh; it is never partially updated.
type PriceSnapshot struct {
	Symbol     string
	Price      float64
	Change24h  float64
	MarketCap  float64
	Volume24h  float64
	CapturedAt time.Time
}
