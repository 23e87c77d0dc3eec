package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/service"
)

// PredictionHandler accepts inbound prediction commands.
type PredictionHandler struct {
	svc *service.PredictionService
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(svc *service.PredictionService) *PredictionHandler {
	return &PredictionHandler{svc: svc}
}

// predictionRequest is the POST /api/predictions body.
type predictionRequest struct {
	UserID    string `json:"user_id"`
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"`
}

// SubmitPrediction records a user's directional call for an asset's open
// round. A closed or missing round yields an explicit rejection telling the
// user to wait for the next round.
func (h *PredictionHandler) SubmitPrediction(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.UserID == "" || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "user_id and symbol are required")
		return
	}

	receipt, err := h.svc.Submit(r.Context(), req.UserID, req.Symbol, req.Direction)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidDirection):
			writeError(w, http.StatusBadRequest, `direction must be "up" or "down"`)
		case errors.Is(err, domain.ErrUnknownAsset):
			writeError(w, http.StatusNotFound, req.Symbol+" is not a tracked asset")
		case errors.Is(err, domain.ErrRoundNotActive):
			writeError(w, http.StatusConflict,
				"no open round for "+req.Symbol+"; the round is no longer open, wait for the next one")
		default:
			writeError(w, http.StatusInternalServerError, "prediction could not be recorded")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"round_id":  receipt.RoundID,
		"symbol":    receipt.Symbol,
		"user_id":   receipt.UserID,
		"direction": string(receipt.Direction),
		"replaced":  receipt.Replaced,
		"closes_at": receipt.EndTime.Format(time.RFC3339),
	})
}
