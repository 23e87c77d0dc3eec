package domain

import (
	"context"
	"time"
)

// SignalBus provides pub/sub fan-out for engine events so out-of-process
// consumers (UIs, other services) can follow round lifecycles live.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// PriceMirror exposes the latest cached prices to out-of-process readers.
// The in-memory price cache remains authoritative; the mirror is best-effort.
type PriceMirror interface {
	SetPrice(ctx context.Context, symbol string, snap PriceSnapshot) error
	GetPrice(ctx context.Context, symbol string) (PriceSnapshot, error)
}

// RoundArchive is the durable, append-only record of resolved rounds. The
// archive is written after resolution and read for audit; it never feeds
// back into live round state.
type RoundArchive interface {
	Insert(ctx context.Context, round Round) error
	ListRecent(ctx context.Context, limit int) ([]Round, error)
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Round, error)
}
