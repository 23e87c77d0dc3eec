package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/pricecache"
	"github.com/predictpulse/roundbot/internal/rounds"
)

// RoundHandler serves round and price read endpoints.
type RoundHandler struct {
	registry *rounds.Registry
	prices   *pricecache.Cache
	archive  domain.RoundArchive // may be nil
}

// NewRoundHandler creates a RoundHandler. archive may be nil when no durable
// archive is configured; the history endpoint then serves only what the
// in-memory registry still retains.
func NewRoundHandler(registry *rounds.Registry, prices *pricecache.Cache, archive domain.RoundArchive) *RoundHandler {
	return &RoundHandler{registry: registry, prices: prices, archive: archive}
}

// roundView is the JSON representation of a round.
type roundView struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	StartPrice  float64    `json:"start_price"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Status      string     `json:"status"`
	Predictions int        `json:"predictions"`
	EndPrice    *float64   `json:"end_price,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toRoundView(r domain.Round) roundView {
	v := roundView{
		ID:          r.ID,
		Symbol:      r.Symbol,
		StartPrice:  r.StartPrice,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Status:      string(r.Status),
		Predictions: len(r.Predictions),
	}
	if r.Status == domain.RoundStatusResolved {
		end := r.EndPrice
		v.EndPrice = &end
		v.Outcome = string(r.Outcome)
		v.ResolvedAt = r.ResolvedAt
	}
	return v
}

// ListRounds returns every round the registry currently holds, newest
// first. Pass ?status=active to filter.
func (h *RoundHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	views := make([]roundView, 0)
	for _, round := range h.registry.List() {
		if status != "" && string(round.Status) != status {
			continue
		}
		views = append(views, toRoundView(round))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": views, "count": len(views)})
}

// GetRound returns one round by ID. Rounds evicted past the retention
// window are gone from memory; the history endpoint serves those.
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	round, err := h.registry.Get(id)
	if err == nil {
		writeJSON(w, http.StatusOK, toRoundView(round))
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeError(w, http.StatusNotFound, "round not found")
}

// ListHistory returns resolved rounds from the durable archive, newest
// first. Pass ?before=<RFC3339> to page past the most recent entries; the
// cursor is the resolution time of the last round on the previous page.
func (h *RoundHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "round history not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var archived []domain.Round
	var err error
	if v := r.URL.Query().Get("before"); v != "" {
		cutoff, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "before must be an RFC3339 timestamp")
			return
		}
		archived, err = h.archive.ListResolvedBefore(r.Context(), cutoff, limit)
	} else {
		archived, err = h.archive.ListRecent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	views := make([]roundView, 0, len(archived))
	for _, round := range archived {
		views = append(views, toRoundView(round))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": views, "count": len(views)})
}

// ListPrices returns the latest cached snapshot for every tracked asset.
func (h *RoundHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	snaps := h.prices.All()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Symbol < snaps[j].Symbol })

	type priceView struct {
		Symbol     string    `json:"symbol"`
		Price      float64   `json:"price"`
		Change24h  float64   `json:"change_24h"`
		MarketCap  float64   `json:"market_cap"`
		Volume24h  float64   `json:"volume_24h"`
		CapturedAt time.Time `json:"captured_at"`
	}

	views := make([]priceView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, priceView{
			Symbol:     s.Symbol,
			Price:      s.Price,
			Change24h:  s.Change24h,
			MarketCap:  s.MarketCap,
			Volume24h:  s.Volume24h,
			CapturedAt: s.CapturedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": views})
}
