package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/users"
)

// UserHandler serves user statistics.
type UserHandler struct {
	registry *users.Registry
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(registry *users.Registry) *UserHandler {
	return &UserHandler{registry: registry}
}

// GetUser returns a user's accumulated prediction statistics.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := h.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       rec.UserID,
		"registered_at": rec.RegisteredAt.Format(time.RFC3339),
		"predictions":   rec.Predictions,
		"wins":          rec.Wins,
		"rewards":       rec.Rewards,
	})
}
