package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/verification"
)

// Verifier runs verification attempts.
type Verifier interface {
	Verify(ctx context.Context, req verification.Request) (verification.Response, error)
}

// VerifyHandler handles attempts submitted by gates.
type VerifyHandler struct {
	engine Verifier
	logger *zap.Logger
}

// NewVerifyHandler creates a new verify handler.
func NewVerifyHandler(engine Verifier, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{engine: engine, logger: logger}
}

// VerifyResponse is the body returned to the gate.
type VerifyResponse struct {
	Decision   database.Decision `json:"decision"`
	Message    string            `json:"message"`
	PersonName string            `json:"person_name,omitempty"`
	Confidence float64           `json:"confidence"`
	Reason     database.Reason   `json:"reason,omitempty"`
	AttemptID  string            `json:"attempt_id"`
	Success    bool              `json:"success"`
	Suspicious bool              `json:"suspicious,omitempty"`
}

// Verify handles POST /api/v1/verify. Every decision, including ERROR, is
// answered with 200 so that gates only need to read the body.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidMultipart)
		return
	}

	gateID := r.FormValue("gate_id")
	if gateID == "" {
		respondError(w, http.StatusBadRequest, "gate_id is required")
		return
	}
	_, hasToken := r.MultipartForm.Value["token"]
	_, hasQR := r.MultipartForm.Value["qr_data"]
	if !hasToken && !hasQR {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}
	token := r.FormValue("token")
	if token == "" {
		token = r.FormValue("qr_data")
	}

	image, _, err := readFormFile(r, "face_image")
	if err != nil {
		if errors.Is(err, errImageBytes) {
			respondError(w, http.StatusRequestEntityTooLarge, errImageTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, "face_image is required")
		return
	}

	resp, err := h.engine.Verify(r.Context(), verification.Request{
		GateID:     gateID,
		TokenValue: token,
		Image:      image,
	})
	switch {
	case errors.Is(err, verification.ErrUnknownGate):
		respondError(w, http.StatusNotFound, "gate not found")
		return
	case errors.Is(err, verification.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "gate_id and face_image are required")
		return
	case err != nil:
		h.logger.Error("verification failed before decision",
			zap.String("gate_id", sanitizeForLog(gateID)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	respondJSON(w, http.StatusOK, VerifyResponse{
		Decision:   resp.Decision,
		Message:    resp.Message,
		PersonName: resp.PersonName,
		Confidence: resp.Confidence,
		Reason:     resp.Reason,
		AttemptID:  resp.AttemptID,
		Success:    resp.Decision == database.DecisionGranted,
		Suspicious: resp.FlaggedSuspicious,
	})
}
