// Package resolve computes the outcome of expired rounds: the resolved
// direction, the winner set, and per-winner reward crediting.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/pricecache"
	"github.com/predictpulse/roundbot/internal/rounds"
)

// Result describes one resolved round.
type Result struct {
	Round      domain.Round
	Winners    []domain.Prediction
	Reward     float64 // per winner
	CreditErrs []error // individual user-registry failures, reported not fatal
}

// Engine resolves expired rounds against freshly observed prices and updates
// the user registry. Resolution is at-most-once per round: the round
// registry's MarkResolved idempotence guards crediting even when sweeps
// overlap.
type Engine struct {
	registry *rounds.Registry
	prices   *pricecache.Cache
	users    domain.UserRegistry
	archive  domain.RoundArchive // may be nil
	reward   float64
	logger   *slog.Logger
}

// New creates an Engine. archive may be nil when no durable round archive is
// configured.
func New(
	registry *rounds.Registry,
	prices *pricecache.Cache,
	users domain.UserRegistry,
	archive domain.RoundArchive,
	rewardPerWin float64,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		registry: registry,
		prices:   prices,
		users:    users,
		archive:  archive,
		reward:   rewardPerWin,
		logger:   logger.With(slog.String("component", "resolver")),
	}
}

// Resolve settles one expired round.
//
// It returns (nil, domain.ErrNoSnapshot) when no fresh price snapshot exists
// for the asset: the round stays Active and is retried on the next sweep
// rather than being resolved against stale or absent data. It returns
// (nil, domain.ErrAlreadyResolved) when another sweep got there first; the
// caller skips crediting entirely in that case.
func (e *Engine) Resolve(ctx context.Context, round domain.Round, now time.Time) (*Result, error) {
	snap, ok := e.prices.Get(round.Symbol)
	if !ok || snap.CapturedAt.Before(round.EndTime.Add(-maxSnapshotLag)) {
		return nil, fmt.Errorf("resolve %s (%s): %w", round.ID, round.Symbol, domain.ErrNoSnapshot)
	}

	resolved, err := e.registry.MarkResolved(round.ID, snap.Price, now)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve %s: %w", round.ID, err)
	}

	result := &Result{
		Round:  resolved,
		Reward: e.reward,
	}

	// Credit winners. Each update is per-user and independent: a failure
	// crediting one user must not block the others, so we continue and
	// collect failures for reporting.
	for _, p := range resolved.Predictions {
		if p.Direction != resolved.Outcome {
			continue
		}
		result.Winners = append(result.Winners, p)
		if err := e.users.RecordWin(ctx, p.UserID, e.reward); err != nil {
			result.CreditErrs = append(result.CreditErrs,
				fmt.Errorf("credit %s: %w", p.UserID, err))
			e.logger.ErrorContext(ctx, "winner credit failed",
				slog.String("round_id", resolved.ID),
				slog.String("user_id", p.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.archive != nil {
		if err := e.archive.Insert(ctx, resolved); err != nil {
			e.logger.WarnContext(ctx, "round archive insert failed",
				slog.String("round_id", resolved.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.logger.InfoContext(ctx, "round resolved",
		slog.String("round_id", resolved.ID),
		slog.String("symbol", resolved.Symbol),
		slog.String("outcome", string(resolved.Outcome)),
		slog.Float64("start_price", resolved.StartPrice),
		slog.Float64("end_price", resolved.EndPrice),
		slog.Int("predictions", len(resolved.Predictions)),
		slog.Int("winners", len(result.Winners)),
	)

	return result, nil
}

// maxSnapshotLag bounds how stale a snapshot may be relative to the round's
// end time and still count as an observation of the closing price. Anything
// older defers resolution to the next sweep.
const maxSnapshotLag = 2 * time.Minute
