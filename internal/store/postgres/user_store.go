package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictpulse/roundbot/internal/domain"
)

// UserStore persists user records. It backs the in-memory user registry as
// its write-through store.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Upsert inserts or replaces a user record. The in-memory registry is
// authoritative for the running process, so a plain overwrite is correct.
func (s *UserStore) Upsert(ctx context.Context, rec domain.UserRecord) error {
	const query = `
		INSERT INTO users (user_id, registered_at, predictions, wins, rewards, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			predictions = EXCLUDED.predictions,
			wins        = EXCLUDED.wins,
			rewards     = EXCLUDED.rewards,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query,
		rec.UserID, rec.RegisteredAt, rec.Predictions, rec.Wins, rec.Rewards,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert user %s: %w", rec.UserID, err)
	}
	return nil
}

// Get returns the persisted record for a user. It returns domain.ErrNotFound
// when the user has never been persisted.
func (s *UserStore) Get(ctx context.Context, userID string) (domain.UserRecord, error) {
	const query = `
		SELECT user_id, registered_at, predictions, wins, rewards
		FROM users
		WHERE user_id = $1`

	var rec domain.UserRecord
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&rec.UserID, &rec.RegisteredAt, &rec.Predictions, &rec.Wins, &rec.Rewards,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserRecord{}, fmt.Errorf("postgres: get user %s: %w", userID, domain.ErrNotFound)
		}
		return domain.UserRecord{}, fmt.Errorf("postgres: get user %s: %w", userID, err)
	}
	return rec, nil
}
