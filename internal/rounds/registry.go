// Package rounds implements the authoritative in-memory registry of
// prediction rounds and owns every round lifecycle transition.
package rounds

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/predictpulse/roundbot/internal/domain"
)

// Registry stores all rounds (active and recently resolved) keyed by round
// ID and maintains a symbol index enforcing the one-active-round-per-asset
// invariant. All operations are in-memory and complete without suspension,
// so a single mutex per registry is sufficient.
type Registry struct {
	mu       sync.Mutex
	rounds   map[string]*domain.Round // round ID -> round
	activeBy map[string]string        // symbol -> active round ID
	duration time.Duration
}

// New creates a Registry whose rounds all run for the given fixed duration.
func New(roundDuration time.Duration) *Registry {
	return &Registry{
		rounds:   make(map[string]*domain.Round),
		activeBy: make(map[string]string),
		duration: roundDuration,
	}
}

// Create opens a new round for the asset at the given start price. The
// check-and-create is a single critical section, so concurrent creation
// sweeps racing on the same symbol see exactly one success; the rest get
// domain.ErrAlreadyActive.
func (r *Registry) Create(symbol string, startPrice float64, now time.Time) (domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.activeBy[symbol]; ok {
		return domain.Round{}, fmt.Errorf("rounds: create %s (active round %s): %w",
			symbol, id, domain.ErrAlreadyActive)
	}

	round := &domain.Round{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		StartPrice:  startPrice,
		StartTime:   now,
		EndTime:     now.Add(r.duration),
		Status:      domain.RoundStatusActive,
		Predictions: make(map[string]domain.Prediction),
	}

	r.rounds[round.ID] = round
	r.activeBy[symbol] = round.ID

	return cloneRound(round), nil
}

// RecordPrediction stores a user's directional call for a round, replacing
// any earlier prediction by the same user for that round. The bool result
// reports whether an earlier prediction was replaced.
func (r *Registry) RecordPrediction(roundID, userID string, dir domain.Direction, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[roundID]
	if !ok {
		return false, fmt.Errorf("rounds: predict on %s: %w", roundID, domain.ErrNotFound)
	}
	if round.Status != domain.RoundStatusActive {
		return false, fmt.Errorf("rounds: predict on %s: %w", roundID, domain.ErrRoundNotActive)
	}

	_, replaced := round.Predictions[userID]
	round.Predictions[userID] = domain.Prediction{
		UserID:      userID,
		Direction:   dir,
		SubmittedAt: now,
	}
	return replaced, nil
}

// ActiveForSymbol returns the Active round for an asset, if any.
func (r *Registry) ActiveForSymbol(symbol string) (domain.Round, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.activeBy[symbol]
	if !ok {
		return domain.Round{}, false
	}
	return cloneRound(r.rounds[id]), true
}

// Get returns a round by ID.
func (r *Registry) Get(roundID string) (domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[roundID]
	if !ok {
		return domain.Round{}, fmt.Errorf("rounds: get %s: %w", roundID, domain.ErrNotFound)
	}
	return cloneRound(round), nil
}

// List returns every round currently held by the registry, newest first.
func (r *Registry) List() []domain.Round {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Round, 0, len(r.rounds))
	for _, round := range r.rounds {
		out = append(out, cloneRound(round))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// ListExpired returns all Active rounds whose end time has passed. It is a
// read-only sweep and never mutates round state.
func (r *Registry) ListExpired(now time.Time) []domain.Round {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []domain.Round
	for _, id := range r.activeBy {
		round := r.rounds[id]
		if round.Expired(now) {
			expired = append(expired, cloneRound(round))
		}
	}
	return expired
}

// MarkResolved performs the sole Active -> Resolved transition. The second
// call for the same round returns domain.ErrAlreadyResolved, which is how
// duplicate sweeps racing on one round are absorbed.
func (r *Registry) MarkResolved(roundID string, endPrice float64, now time.Time) (domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[roundID]
	if !ok {
		return domain.Round{}, fmt.Errorf("rounds: resolve %s: %w", roundID, domain.ErrNotFound)
	}
	if round.Status == domain.RoundStatusResolved {
		return domain.Round{}, fmt.Errorf("rounds: resolve %s: %w", roundID, domain.ErrAlreadyResolved)
	}

	resolvedAt := now
	round.Status = domain.RoundStatusResolved
	round.EndPrice = endPrice
	round.Outcome = domain.MoveDirection(round.StartPrice, endPrice)
	round.ResolvedAt = &resolvedAt
	delete(r.activeBy, round.Symbol)

	return cloneRound(round), nil
}

// Evict removes a Resolved round from the registry. Evicting an Active
// round is refused so a wedged retention loop can never drop live state.
func (r *Registry) Evict(roundID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[roundID]
	if !ok {
		return fmt.Errorf("rounds: evict %s: %w", roundID, domain.ErrNotFound)
	}
	if round.Status != domain.RoundStatusResolved {
		return fmt.Errorf("rounds: evict %s: %w", roundID, domain.ErrRoundNotActive)
	}
	delete(r.rounds, roundID)
	return nil
}

// ListEvictable returns Resolved rounds whose resolution happened before the
// given cutoff, i.e. rounds past their retention window.
func (r *Registry) ListEvictable(cutoff time.Time) []domain.Round {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Round
	for _, round := range r.rounds {
		if round.Status == domain.RoundStatusResolved && round.ResolvedAt != nil && round.ResolvedAt.Before(cutoff) {
			out = append(out, cloneRound(round))
		}
	}
	return out
}

// cloneRound copies a round, including its prediction map, so callers never
// hold a reference into registry-owned state.
func cloneRound(r *domain.Round) domain.Round {
	out := *r
	out.Predictions = make(map[string]domain.Prediction, len(r.Predictions))
	for k, v := range r.Predictions {
		out.Predictions[k] = v
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
