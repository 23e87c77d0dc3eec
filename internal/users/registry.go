// Package users implements the user registry: per-user prediction stats,
// created lazily on first interaction and never deleted during normal
// operation.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
)

// Store is the optional durable backend behind the in-memory registry.
// Writes go through best-effort; a store failure is logged and never blocks
// the caller.
type Store interface {
	Upsert(ctx context.Context, rec domain.UserRecord) error
	Get(ctx context.Context, userID string) (domain.UserRecord, error)
}

// Registry is an in-memory implementation of domain.UserRegistry with
// optional write-through persistence. Its user map is guarded independently
// of the round registry; no operation ever needs both locks at once.
type Registry struct {
	mu     sync.Mutex
	users  map[string]*domain.UserRecord
	store  Store // may be nil
	logger *slog.Logger
}

// NewRegistry creates a Registry. store may be nil for a purely in-memory
// deployment.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	return &Registry{
		users:  make(map[string]*domain.UserRecord),
		store:  store,
		logger: logger.With(slog.String("component", "user_registry")),
	}
}

// GetOrCreate returns the record for userID, creating it on first
// interaction. When a durable store is configured, a previously persisted
// record is loaded before a fresh one is minted. A store read failure other
// than "no such user" aborts the call: minting a zeroed record over a row we
// could not read would let the next write-through wipe the user's durable
// stats.
func (r *Registry) GetOrCreate(ctx context.Context, userID string) (domain.UserRecord, error) {
	r.mu.Lock()
	if rec, ok := r.users[userID]; ok {
		out := *rec
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	// Not in memory: try the durable store before creating.
	if r.store != nil {
		rec, err := r.store.Get(ctx, userID)
		switch {
		case err == nil:
			r.mu.Lock()
			// Another caller may have raced us here; keep whichever record
			// landed first.
			if existing, ok := r.users[userID]; ok {
				out := *existing
				r.mu.Unlock()
				return out, nil
			}
			stored := rec
			r.users[userID] = &stored
			r.mu.Unlock()
			return rec, nil
		case errors.Is(err, domain.ErrNotFound):
			// First interaction; fall through and mint a fresh record.
		default:
			return domain.UserRecord{}, fmt.Errorf("users: load %s: %w", userID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[userID]; ok {
		return *existing, nil
	}
	rec := &domain.UserRecord{
		UserID:       userID,
		RegisteredAt: time.Now().UTC(),
	}
	r.users[userID] = rec
	r.persist(ctx, *rec)
	return *rec, nil
}

// RecordPredictionMade increments the user's prediction count, creating the
// record if needed.
func (r *Registry) RecordPredictionMade(ctx context.Context, userID string) error {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return fmt.Errorf("users: record prediction for %s: %w", userID, err)
	}

	r.mu.Lock()
	rec := r.users[userID]
	rec.Predictions++
	out := *rec
	r.mu.Unlock()

	r.persist(ctx, out)
	return nil
}

// RecordWin credits a round win and its reward to the user.
func (r *Registry) RecordWin(ctx context.Context, userID string, reward float64) error {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return fmt.Errorf("users: record win for %s: %w", userID, err)
	}

	r.mu.Lock()
	rec := r.users[userID]
	rec.Wins++
	rec.Rewards += reward
	out := *rec
	r.mu.Unlock()

	r.persist(ctx, out)
	return nil
}

// Get returns the record for userID without creating it.
func (r *Registry) Get(ctx context.Context, userID string) (domain.UserRecord, error) {
	r.mu.Lock()
	rec, ok := r.users[userID]
	if ok {
		out := *rec
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	if r.store != nil {
		stored, err := r.store.Get(ctx, userID)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.UserRecord{}, fmt.Errorf("users: get %s: %w", userID, err)
		}
	}
	return domain.UserRecord{}, fmt.Errorf("users: get %s: %w", userID, domain.ErrNotFound)
}

// persist writes the record through to the durable store when configured.
// Store failures are logged and swallowed; in-memory state is authoritative
// for the running process.
func (r *Registry) persist(ctx context.Context, rec domain.UserRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		r.logger.WarnContext(ctx, "user record persist failed",
			slog.String("user_id", rec.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// Compile-time interface check.
var _ domain.UserRegistry = (*Registry)(nil)
