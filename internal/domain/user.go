package domain

import (
	"context"
	"time"
)

// UserRecord holds a user's accumulated prediction statistics. Records are
// created lazily on first interaction and never deleted during normal
// operation.
type UserRecord struct {
	UserID       string
	RegisteredAt time.Time
	Predictions  int64
	Wins         int64
	Rewards      float64
}

// UserRegistry maps opaque user identifiers to accumulated statistics. The
// engine reads and updates records through this interface; it does not own
// authentication or persistence policy.
type UserRegistry interface {
	GetOrCreate(ctx context.Context, userID string) (UserRecord, error)
	RecordPredictionMade(ctx context.Context, userID string) error
	RecordWin(ctx context.Context, userID string, reward float64) error
}
