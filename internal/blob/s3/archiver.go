package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/predictpulse/roundbot/internal/domain"
)

// Archiver writes batches of evicted rounds to object storage as JSON.
// Objects are keyed by eviction date and batch timestamp:
//
//	rounds/2026/08/30/20260830T120501-3rounds.json
type Archiver struct {
	client *Client
	logger *slog.Logger
}

// NewArchiver creates an Archiver backed by the given client.
func NewArchiver(client *Client, logger *slog.Logger) *Archiver {
	return &Archiver{
		client: client,
		logger: logger.With(slog.String("component", "s3_archiver")),
	}
}

// archivedRound is the JSON shape of one exported round.
type archivedRound struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	StartPrice  float64         `json:"start_price"`
	EndPrice    float64         `json:"end_price"`
	Outcome     string          `json:"outcome"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	ResolvedAt  *time.Time      `json:"resolved_at"`
	Predictions []archivedGuess `json:"predictions"`
}

type archivedGuess struct {
	UserID      string    `json:"user_id"`
	Direction   string    `json:"direction"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ArchiveRounds uploads one JSON object containing the whole batch. An empty
// batch is a no-op.
func (a *Archiver) ArchiveRounds(ctx context.Context, batch []domain.Round) error {
	if len(batch) == 0 {
		return nil
	}

	export := make([]archivedRound, 0, len(batch))
	for _, r := range batch {
		ar := archivedRound{
			ID:         r.ID,
			Symbol:     r.Symbol,
			StartPrice: r.StartPrice,
			EndPrice:   r.EndPrice,
			Outcome:    string(r.Outcome),
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
			ResolvedAt: r.ResolvedAt,
		}
		for _, p := range r.Predictions {
			ar.Predictions = append(ar.Predictions, archivedGuess{
				UserID:      p.UserID,
				Direction:   string(p.Direction),
				SubmittedAt: p.SubmittedAt,
			})
		}
		export = append(export, ar)
	}

	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("s3blob: marshal round batch: %w", err)
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("rounds/%s/%s-%drounds.json",
		now.Format("2006/01/02"), now.Format("20060102T150405"), len(batch))

	_, err = a.client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put round batch %s: %w", key, err)
	}

	a.logger.InfoContext(ctx, "round batch archived",
		slog.String("key", key),
		slog.Int("rounds", len(batch)),
	)
	return nil
}
