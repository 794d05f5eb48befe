package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/constants"
	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/embeddings"
	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
)

// Identifier finds the enrolled persons closest to a face embedding.
type Identifier interface {
	Identify(vec []float32, k int) ([]embeddings.Candidate, error)
}

// IdentifyHandler handles operator lookups of unknown faces.
type IdentifyHandler struct {
	encoder encoder.Encoder
	index   Identifier
	persons database.PersonReader
	logger  *zap.Logger
}

// NewIdentifyHandler creates a new identify handler.
func NewIdentifyHandler(enc encoder.Encoder, index Identifier, persons database.PersonReader, logger *zap.Logger) *IdentifyHandler {
	return &IdentifyHandler{encoder: enc, index: index, persons: persons, logger: logger}
}

// IdentifyMatch is one candidate person.
type IdentifyMatch struct {
	PersonID   string  `json:"person_id"`
	PersonName string  `json:"person_name,omitempty"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// IdentifyResponse lists candidates, closest first.
type IdentifyResponse struct {
	Matches []IdentifyMatch `json:"matches"`
}

// Identify handles POST /api/v1/identify.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidMultipart)
		return
	}
	limit, err := parseLimit(r.FormValue("limit"), constants.DefaultIdentifyLimit, constants.MaxIdentifyLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
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

	vec, err := h.encoder.Encode(r.Context(), image)
	if err != nil {
		if errors.Is(err, encoder.ErrNoFaceDetected) {
			respondError(w, http.StatusUnprocessableEntity, "no face detected")
			return
		}
		status, msg := rebuildStatus(err)
		h.logger.Error("encoding identify image failed", zap.Error(err))
		respondError(w, status, msg)
		return
	}

	candidates, err := h.index.Identify(vec, limit)
	if err != nil {
		h.logger.Error("identify failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "face model failure")
		return
	}

	matches := make([]IdentifyMatch, 0, len(candidates))
	for _, c := range candidates {
		m := IdentifyMatch{PersonID: c.PersonID, Distance: c.Distance, Similarity: 1 - c.Distance}
		if p, err := h.persons.GetPerson(r.Context(), c.PersonID); err == nil && p != nil {
			m.PersonName = p.FullName()
		}
		matches = append(matches, m)
	}
	respondJSON(w, http.StatusOK, IdentifyResponse{Matches: matches})
}
