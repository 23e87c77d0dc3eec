package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/rounds"
	"github.com/predictpulse/roundbot/internal/users"
)

func newService(t *testing.T) (*PredictionService, *rounds.Registry, *users.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := rounds.New(5 * time.Minute)
	usr := users.NewRegistry(nil, logger)
	assets := []domain.Asset{
		{Symbol: "BTC", FeedKey: "bitcoin"},
		{Symbol: "ETH", FeedKey: "ethereum"},
	}
	return NewPredictionService(reg, usr, assets, logger), reg, usr
}

func TestSubmit_RecordsPrediction(t *testing.T) {
	ctx := context.Background()
	svc, reg, usr := newService(t)

	round, err := reg.Create("BTC", 50000, time.Now().UTC())
	require.NoError(t, err)

	receipt, err := svc.Submit(ctx, "alice", "BTC", "up")
	require.NoError(t, err)
	assert.Equal(t, round.ID, receipt.RoundID)
	assert.Equal(t, domain.DirectionUp, receipt.Direction)
	assert.False(t, receipt.Replaced)
	assert.Equal(t, round.EndTime, receipt.EndTime)

	rec, err := usr.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Predictions)
}

func TestSubmit_OverwriteDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	svc, reg, usr := newService(t)

	_, err := reg.Create("BTC", 50000, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "alice", "BTC", "up")
	require.NoError(t, err)
	receipt, err := svc.Submit(ctx, "alice", "BTC", "down")
	require.NoError(t, err)
	assert.True(t, receipt.Replaced)

	rec, err := usr.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Predictions, "an overwrite is not a new prediction")
}

func TestSubmit_InvalidDirection(t *testing.T) {
	svc, reg, _ := newService(t)
	_, err := reg.Create("BTC", 50000, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "alice", "BTC", "sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidDirection)
}

func TestSubmit_NoActiveRound(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Submit(context.Background(), "alice", "BTC", "up")
	assert.ErrorIs(t, err, domain.ErrRoundNotActive)
}

func TestSubmit_UntrackedSymbol(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Submit(context.Background(), "alice", "DOGE", "up")
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)
}

func TestSubmit_ResolvedRoundRejected(t *testing.T) {
	ctx := context.Background()
	svc, reg, _ := newService(t)

	now := time.Now().UTC()
	round, err := reg.Create("BTC", 50000, now)
	require.NoError(t, err)
	_, err = reg.MarkResolved(round.ID, 50500, now.Add(5*time.Minute))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "alice", "BTC", "up")
	assert.ErrorIs(t, err, domain.ErrRoundNotActive)
}
