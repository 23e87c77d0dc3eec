package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictpulse/roundbot/internal/domain"
)

// RoundArchive implements domain.RoundArchive. Resolved rounds are stored
// append-only with their predictions as a JSONB document; the archive is
// read for audit and cold-storage export, never for live round state.
type RoundArchive struct {
	pool *pgxpool.Pool
}

// NewRoundArchive creates a new RoundArchive backed by the given pool.
func NewRoundArchive(pool *pgxpool.Pool) *RoundArchive {
	return &RoundArchive{pool: pool}
}

// archivedPrediction is the JSONB shape of one prediction.
type archivedPrediction struct {
	UserID      string    `json:"user_id"`
	Direction   string    `json:"direction"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Insert records a resolved round. Re-inserting the same round ID is a
// no-op so a retried resolution broadcast cannot duplicate history.
func (s *RoundArchive) Insert(ctx context.Context, round domain.Round) error {
	if round.ResolvedAt == nil {
		return fmt.Errorf("postgres: archive round %s: round not resolved", round.ID)
	}

	preds := make([]archivedPrediction, 0, len(round.Predictions))
	for _, p := range round.Predictions {
		preds = append(preds, archivedPrediction{
			UserID:      p.UserID,
			Direction:   string(p.Direction),
			SubmittedAt: p.SubmittedAt,
		})
	}
	predsJSON, err := json.Marshal(preds)
	if err != nil {
		return fmt.Errorf("postgres: marshal predictions for %s: %w", round.ID, err)
	}

	const query = `
		INSERT INTO resolved_rounds (
			id, symbol, start_price, end_price, outcome,
			start_time, end_time, resolved_at, predictions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		round.ID, round.Symbol, round.StartPrice, round.EndPrice, string(round.Outcome),
		round.StartTime, round.EndTime, *round.ResolvedAt, predsJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: archive round %s: %w", round.ID, err)
	}
	return nil
}

// ListRecent returns up to limit archived rounds, newest first.
func (s *RoundArchive) ListRecent(ctx context.Context, limit int) ([]domain.Round, error) {
	const query = `
		SELECT id, symbol, start_price, end_price, outcome,
		       start_time, end_time, resolved_at, predictions
		FROM resolved_rounds
		ORDER BY resolved_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent rounds: %w", err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// ListResolvedBefore returns up to limit rounds resolved before the cutoff,
// oldest first. Used by the cold-storage exporter.
func (s *RoundArchive) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Round, error) {
	const query = `
		SELECT id, symbol, start_price, end_price, outcome,
		       start_time, end_time, resolved_at, predictions
		FROM resolved_rounds
		WHERE resolved_at < $1
		ORDER BY resolved_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds before %s: %w", cutoff, err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// scanRounds converts archive rows back into domain rounds.
func scanRounds(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.Round, error) {
	var out []domain.Round
	for rows.Next() {
		var (
			r         domain.Round
			outcome   string
			resolved  time.Time
			predsJSON []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Symbol, &r.StartPrice, &r.EndPrice, &outcome,
			&r.StartTime, &r.EndTime, &resolved, &predsJSON,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}

		r.Status = domain.RoundStatusResolved
		r.Outcome = domain.Direction(outcome)
		r.ResolvedAt = &resolved

		var preds []archivedPrediction
		if err := json.Unmarshal(predsJSON, &preds); err != nil {
			return nil, fmt.Errorf("postgres: decode predictions for %s: %w", r.ID, err)
		}
		r.Predictions = make(map[string]domain.Prediction, len(preds))
		for _, p := range preds {
			r.Predictions[p.UserID] = domain.Prediction{
				UserID:      p.UserID,
				Direction:   domain.Direction(p.Direction),
				SubmittedAt: p.SubmittedAt,
			}
		}

		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rounds: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.RoundArchive = (*RoundArchive)(nil)
