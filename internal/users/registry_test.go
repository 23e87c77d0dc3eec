package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictpulse/roundbot/internal/domain"
)

type fakeStore struct {
	records   map[string]domain.UserRecord
	upsertErr error
	getErr    error
	upserts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]domain.UserRecord)}
}

func (s *fakeStore) Upsert(ctx context.Context, rec domain.UserRecord) error {
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.records[rec.UserID] = rec
	return nil
}

func (s *fakeStore) Get(ctx context.Context, userID string) (domain.UserRecord, error) {
	if s.getErr != nil {
		return domain.UserRecord{}, s.getErr
	}
	rec, ok := s.records[userID]
	if !ok {
		return domain.UserRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetOrCreate_LazyRegistration(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil, testLogger())

	rec, err := reg.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.UserID)
	assert.False(t, rec.RegisteredAt.IsZero())
	assert.Zero(t, rec.Predictions)

	// A second call returns the same record, not a fresh one.
	again, err := reg.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rec.RegisteredAt, again.RegisteredAt)
}

func TestRecordWin_AccumulatesStats(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil, testLogger())

	require.NoError(t, reg.RecordPredictionMade(ctx, "alice"))
	require.NoError(t, reg.RecordWin(ctx, "alice", 100))
	require.NoError(t, reg.RecordWin(ctx, "alice", 100))

	rec, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Predictions)
	assert.Equal(t, int64(2), rec.Wins)
	assert.Equal(t, 200.0, rec.Rewards)
}

func TestGet_UnknownUser(t *testing.T) {
	reg := NewRegistry(nil, testLogger())
	_, err := reg.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetOrCreate_LoadsFromStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.records["alice"] = domain.UserRecord{
		UserID:       "alice",
		RegisteredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Predictions:  7,
		Wins:         3,
		Rewards:      300,
	}
	reg := NewRegistry(store, testLogger())

	rec, err := reg.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Predictions)
	assert.Equal(t, int64(3), rec.Wins)
}

func TestRecordWin_UpsertFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.upsertErr = errors.New("db down")
	reg := NewRegistry(store, testLogger())

	require.NoError(t, reg.RecordWin(ctx, "alice", 100))

	rec, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Wins, "in-memory state is authoritative when the write-through fails")
}

func TestGetOrCreate_ReadFailureDoesNotWipeStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.records["alice"] = domain.UserRecord{
		UserID:  "alice",
		Wins:    12,
		Rewards: 1200,
	}
	store.getErr = errors.New("db down")
	reg := NewRegistry(store, testLogger())

	_, err := reg.GetOrCreate(ctx, "alice")
	require.Error(t, err, "a transient read failure must not mint a zeroed record")

	assert.Zero(t, store.upserts, "no write-through on a failed read")
	assert.Equal(t, int64(12), store.records["alice"].Wins)
	assert.Equal(t, 1200.0, store.records["alice"].Rewards)
}

func TestRegistry_WritesThroughToStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	reg := NewRegistry(store, testLogger())

	require.NoError(t, reg.RecordWin(ctx, "alice", 100))

	persisted, ok := store.records["alice"]
	require.True(t, ok)
	assert.Equal(t, int64(1), persisted.Wins)
	assert.Equal(t, 100.0, persisted.Rewards)
}
