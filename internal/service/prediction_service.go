// Package service contains the user-facing operations layered over the
// registries: submitting predictions and reading round/user state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/rounds"
)

// PredictionService routes inbound prediction commands to the Active round
// for the named asset. Submission is a fast in-memory read/write, fully
// decoupled from the scheduler's timer tasks.
type PredictionService struct {
	registry *rounds.Registry
	users    domain.UserRegistry
	tracked  map[string]bool // keyed by symbol
	logger   *slog.Logger
}

// NewPredictionService creates a PredictionService. assets is the tracked
// asset list; symbols outside it are rejected before any round lookup.
func NewPredictionService(registry *rounds.Registry, users domain.UserRegistry, assets []domain.Asset, logger *slog.Logger) *PredictionService {
	tracked := make(map[string]bool, len(assets))
	for _, a := range assets {
		tracked[a.Symbol] = true
	}
	return &PredictionService{
		registry: registry,
		users:    users,
		tracked:  tracked,
		logger:   logger.With(slog.String("component", "prediction_service")),
	}
}

// Receipt describes an accepted prediction.
type Receipt struct {
	RoundID   string
	Symbol    string
	UserID    string
	Direction domain.Direction
	Replaced  bool // an earlier prediction by the same user was overwritten
	EndTime   time.Time
}

// Submit records a prediction for the asset's Active round.
//
// It returns domain.ErrInvalidDirection for unparseable input,
// domain.ErrUnknownAsset for symbols outside the tracked list, and
// domain.ErrRoundNotActive when the asset has no open round; all are
// user-input rejections that never corrupt engine state. A repeat
// submission by the same user replaces the earlier one and sets
// Receipt.Replaced.
func (s *PredictionService) Submit(ctx context.Context, userID, symbol, direction string) (Receipt, error) {
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return Receipt{}, fmt.Errorf("service: submit for %s: %w", symbol, err)
	}

	if !s.tracked[symbol] {
		return Receipt{}, fmt.Errorf("service: submit for %s: %w", symbol, domain.ErrUnknownAsset)
	}

	round, ok := s.registry.ActiveForSymbol(symbol)
	if !ok {
		return Receipt{}, fmt.Errorf("service: submit for %s: %w", symbol, domain.ErrRoundNotActive)
	}

	replaced, err := s.registry.RecordPrediction(round.ID, userID, dir, time.Now().UTC())
	if err != nil {
		// The round may have expired between lookup and write; surface the
		// same "round no longer open" rejection.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrRoundNotActive) {
			return Receipt{}, fmt.Errorf("service: submit for %s: %w", symbol, domain.ErrRoundNotActive)
		}
		return Receipt{}, fmt.Errorf("service: submit for %s: %w", symbol, err)
	}

	// Count the prediction only the first time; an overwrite is the same
	// prediction changing its mind, not a new one.
	if !replaced {
		if err := s.users.RecordPredictionMade(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "prediction count update failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "prediction recorded",
		slog.String("round_id", round.ID),
		slog.String("symbol", symbol),
		slog.String("user_id", userID),
		slog.String("direction", string(dir)),
		slog.Bool("replaced", replaced),
	)

	return Receipt{
		RoundID:   round.ID,
		Symbol:    symbol,
		UserID:    userID,
		Direction: dir,
		Replaced:  replaced,
		EndTime:   round.EndTime,
	}, nil
}
