package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/constants"
	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// GatesHandler handles gate endpoints.
type GatesHandler struct {
	gates    database.GateReader
	attempts database.AttemptReader
	logger   *zap.Logger
}

// NewGatesHandler creates a new gates handler.
func NewGatesHandler(gates database.GateReader, attempts database.AttemptReader, logger *zap.Logger) *GatesHandler {
	return &GatesHandler{gates: gates, attempts: attempts, logger: logger}
}

// ListAttempts handles GET /api/v1/gates/{id}/attempts. Inactive gates keep
// their history.
func (h *GatesHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), constants.DefaultAttemptLimit, constants.MaxAttemptLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	gate, err := h.gates.GetGate(r.Context(), id)
	if err != nil {
		h.logger.Error("gate lookup failed", zap.String("gate_id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load gate")
		return
	}
	if gate == nil {
		respondError(w, http.StatusNotFound, "gate not found")
		return
	}

	attempts, err := h.attempts.ListByGate(r.Context(), gate.ID, limit)
	if err != nil {
		h.logger.Error("listing attempts failed", zap.String("gate_id", gate.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []database.VerificationAttempt{}
	}
	respondJSON(w, http.StatusOK, AttemptsResponse{GateID: gate.ID, Attempts: attempts})
}
