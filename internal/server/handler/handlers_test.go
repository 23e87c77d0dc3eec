package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/pricecache"
	"github.com/predictpulse/roundbot/internal/rounds"
	"github.com/predictpulse/roundbot/internal/service"
	"github.com/predictpulse/roundbot/internal/users"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMux wires the handlers onto a mux the same way the server does, so
// path parameters resolve in tests.
func newMux(t *testing.T) (*http.ServeMux, *rounds.Registry, *users.Registry) {
	t.Helper()
	logger := testLogger()
	reg := rounds.New(5 * time.Minute)
	usr := users.NewRegistry(nil, logger)
	prices := pricecache.New()
	assets := []domain.Asset{
		{Symbol: "BTC", FeedKey: "bitcoin"},
		{Symbol: "ETH", FeedKey: "ethereum"},
	}
	svc := service.NewPredictionService(reg, usr, assets, logger)

	rh := NewRoundHandler(reg, prices, nil)
	ph := NewPredictionHandler(svc)
	uh := NewUserHandler(usr)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rounds", rh.ListRounds)
	mux.HandleFunc("GET /api/rounds/history", rh.ListHistory)
	mux.HandleFunc("GET /api/rounds/{id}", rh.GetRound)
	mux.HandleFunc("GET /api/prices", rh.ListPrices)
	mux.HandleFunc("POST /api/predictions", ph.SubmitPrediction)
	mux.HandleFunc("GET /api/users/{id}", uh.GetUser)
	return mux, reg, usr
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestSubmitPrediction_Created(t *testing.T) {
	mux, reg, _ := newMux(t)
	round, err := reg.Create("BTC", 50000, time.Now().UTC())
	require.NoError(t, err)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/predictions",
		`{"user_id":"alice","symbol":"btc","direction":"up"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, round.ID, body["round_id"])
	assert.Equal(t, "BTC", body["symbol"], "symbol is normalized to upper case")
	assert.Equal(t, "up", body["direction"])
	assert.Equal(t, false, body["replaced"])
}

func TestSubmitPrediction_ReplacedFlag(t *testing.T) {
	mux, reg, _ := newMux(t)
	_, err := reg.Create("BTC", 50000, time.Now().UTC())
	require.NoError(t, err)

	doJSON(t, mux, http.MethodPost, "/api/predictions",
		`{"user_id":"alice","symbol":"BTC","direction":"up"}`)
	rec, body := doJSON(t, mux, http.MethodPost, "/api/predictions",
		`{"user_id":"alice","symbol":"BTC","direction":"down"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["replaced"])
}

func TestSubmitPrediction_Rejections(t *testing.T) {
	mux, reg, _ := newMux(t)
	_, err := reg.Create("BTC", 50000, time.Now().UTC())
	require.NoError(t, err)

	cases := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing user", `{"symbol":"BTC","direction":"up"}`, http.StatusBadRequest},
		{"bad direction", `{"user_id":"a","symbol":"BTC","direction":"sideways"}`, http.StatusBadRequest},
		{"no open round", `{"user_id":"a","symbol":"ETH","direction":"up"}`, http.StatusConflict},
		{"untracked symbol", `{"user_id":"a","symbol":"DOGE","direction":"up"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec, body := doJSON(t, mux, http.MethodPost, "/api/predictions", tc.body)
		assert.Equal(t, tc.wantCode, rec.Code, tc.name)
		assert.Contains(t, body, "error", tc.name)
	}
}

func TestSubmitPrediction_ClosedRoundConflict(t *testing.T) {
	mux, reg, _ := newMux(t)
	now := time.Now().UTC()
	round, err := reg.Create("BTC", 50000, now)
	require.NoError(t, err)
	_, err = reg.MarkResolved(round.ID, 50500, now.Add(5*time.Minute))
	require.NoError(t, err)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/predictions",
		`{"user_id":"alice","symbol":"BTC","direction":"up"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, body["error"], "wait for the next one")
}

func TestGetRound(t *testing.T) {
	mux, reg, _ := newMux(t)
	now := time.Now().UTC()
	round, err := reg.Create("BTC", 50000, now)
	require.NoError(t, err)

	rec, body := doJSON(t, mux, http.MethodGet, "/api/rounds/"+round.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, round.ID, body["id"])
	assert.Equal(t, "active", body["status"])
	assert.NotContains(t, body, "end_price", "active rounds have no end price yet")

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/rounds/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRound_ResolvedView(t *testing.T) {
	mux, reg, _ := newMux(t)
	now := time.Now().UTC()
	round, err := reg.Create("BTC", 50000, now)
	require.NoError(t, err)
	_, err = reg.MarkResolved(round.ID, 50500, now.Add(5*time.Minute))
	require.NoError(t, err)

	rec, body := doJSON(t, mux, http.MethodGet, "/api/rounds/"+round.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "resolved", body["status"])
	assert.Equal(t, 50500.0, body["end_price"])
	assert.Equal(t, "up", body["outcome"])
}

func TestListRounds_StatusFilter(t *testing.T) {
	mux, reg, _ := newMux(t)
	now := time.Now().UTC()
	resolved, err := reg.Create("BTC", 50000, now)
	require.NoError(t, err)
	_, err = reg.MarkResolved(resolved.ID, 50500, now.Add(5*time.Minute))
	require.NoError(t, err)
	_, err = reg.Create("ETH", 3000, now.Add(6*time.Minute))
	require.NoError(t, err)

	_, body := doJSON(t, mux, http.MethodGet, "/api/rounds", "")
	assert.Equal(t, 2.0, body["count"])

	_, body = doJSON(t, mux, http.MethodGet, "/api/rounds?status=active", "")
	assert.Equal(t, 1.0, body["count"])
}

func TestListHistory_NotConfigured(t *testing.T) {
	mux, _, _ := newMux(t)
	rec, _ := doJSON(t, mux, http.MethodGet, "/api/rounds/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeArchive struct {
	recent []domain.Round
	older  []domain.Round
}

func (a *fakeArchive) Insert(ctx context.Context, round domain.Round) error { return nil }

func (a *fakeArchive) ListRecent(ctx context.Context, limit int) ([]domain.Round, error) {
	return a.recent, nil
}

func (a *fakeArchive) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Round, error) {
	var out []domain.Round
	for _, r := range a.older {
		if r.ResolvedAt != nil && r.ResolvedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func archivedRound(id string, resolvedAt time.Time) domain.Round {
	return domain.Round{
		ID:         id,
		Symbol:     "BTC",
		StartPrice: 50000,
		StartTime:  resolvedAt.Add(-5 * time.Minute),
		EndTime:    resolvedAt,
		Status:     domain.RoundStatusResolved,
		EndPrice:   50500,
		Outcome:    domain.DirectionUp,
		ResolvedAt: &resolvedAt,
	}
}

func TestListHistory_BeforeCursorPagesArchive(t *testing.T) {
	newest := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	arch := &fakeArchive{
		recent: []domain.Round{archivedRound("round-new", newest)},
		older:  []domain.Round{archivedRound("round-old", newest.Add(-time.Hour))},
	}
	rh := NewRoundHandler(rounds.New(5*time.Minute), pricecache.New(), arch)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rounds/history", rh.ListHistory)

	_, body := doJSON(t, mux, http.MethodGet, "/api/rounds/history", "")
	assert.Equal(t, 1.0, body["count"])

	cursor := url.QueryEscape(newest.Format(time.RFC3339))
	rec, body := doJSON(t, mux, http.MethodGet, "/api/rounds/history?before="+cursor, "")
	require.Equal(t, http.StatusOK, rec.Code)
	paged, ok := body["rounds"].([]any)
	require.True(t, ok)
	require.Len(t, paged, 1)
	assert.Equal(t, "round-old", paged[0].(map[string]any)["id"])

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/rounds/history?before=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUser(t *testing.T) {
	mux, _, usr := newMux(t)
	require.NoError(t, usr.RecordWin(context.Background(), "alice", 100))

	rec, body := doJSON(t, mux, http.MethodGet, "/api/users/alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body["user_id"])
	assert.Equal(t, 1.0, body["wins"])
	assert.Equal(t, 100.0, body["rewards"])

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/users/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPrices_Empty(t *testing.T) {
	mux, _, _ := newMux(t)
	rec, body := doJSON(t, mux, http.MethodGet, "/api/prices", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	prices, ok := body["prices"].([]any)
	require.True(t, ok)
	assert.Empty(t, prices)
}
