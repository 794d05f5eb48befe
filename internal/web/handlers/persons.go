package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/constants"
	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/embeddings"
	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
	"github.com/WKowalczykDev/EntranceControl/internal/imagestore"
)

// ReferenceImageStore stores and lists enrollment images.
type ReferenceImageStore interface {
	embeddings.ImageProvider
	AddReferenceImage(ctx context.Context, personID, filename string, data []byte) (string, error)
}

// EmbeddingRebuilder rebuilds reference embeddings.
type EmbeddingRebuilder interface {
	RebuildFromProvider(ctx context.Context, personID string, provider embeddings.ImageProvider) ([]float32, error)
}

// PersonsHandler handles enrollment and attempt history of persons.
type PersonsHandler struct {
	persons  database.PersonReader
	images   ReferenceImageStore
	records  database.ReferenceImageWriter
	store    EmbeddingRebuilder
	attempts database.AttemptReader
	logger   *zap.Logger
}

// NewPersonsHandler creates a new persons handler. records may be nil when
// image paths are not tracked in the database.
func NewPersonsHandler(
	persons database.PersonReader,
	images ReferenceImageStore,
	records database.ReferenceImageWriter,
	store EmbeddingRebuilder,
	attempts database.AttemptReader,
	logger *zap.Logger,
) *PersonsHandler {
	return &PersonsHandler{
		persons:  persons,
		images:   images,
		records:  records,
		store:    store,
		attempts: attempts,
		logger:   logger,
	}
}

// RebuildResponse reports a rebuilt reference embedding.
type RebuildResponse struct {
	PersonID  string    `json:"person_id"`
	Dim       int       `json:"dim"`
	ImagePath string    `json:"image_path,omitempty"`
	RebuiltAt time.Time `json:"rebuilt_at"`
}

// AttemptsResponse lists verification attempts.
type AttemptsResponse struct {
	PersonID string                         `json:"person_id,omitempty"`
	GateID   string                         `json:"gate_id,omitempty"`
	Attempts []database.VerificationAttempt `json:"attempts"`
}

// requirePerson writes 404 and returns nil when the person does not exist.
func (h *PersonsHandler) requirePerson(w http.ResponseWriter, r *http.Request) *database.Person {
	id := chi.URLParam(r, "id")
	person, err := h.persons.GetPerson(r.Context(), id)
	if err != nil {
		h.logger.Error("person lookup failed", zap.String("person_id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load person")
		return nil
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return nil
	}
	return person
}

// UploadImage handles POST /api/v1/persons/{id}/images. The image is kept
// even when the following rebuild fails.
func (h *PersonsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	person := h.requirePerson(w, r)
	if person == nil {
		return
	}
	if err := parseMultipart(w, r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidMultipart)
		return
	}
	data, filename, err := readFormFile(r, "file")
	if err != nil {
		if errors.Is(err, errImageBytes) {
			respondError(w, http.StatusRequestEntityTooLarge, errImageTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}

	path, err := h.images.AddReferenceImage(r.Context(), person.ID, filename, data)
	if err != nil {
		if errors.Is(err, imagestore.ErrUnsupportedImage) {
			respondError(w, http.StatusBadRequest, "only jpg, jpeg and png images are accepted")
			return
		}
		h.logger.Error("storing reference image failed", zap.String("person_id", person.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	if h.records != nil {
		if _, err := h.records.AddReferenceImage(r.Context(), person.ID, path); err != nil {
			h.logger.Error("recording reference image failed", zap.String("person_id", person.ID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to record image")
			return
		}
	}

	h.rebuild(w, r, person.ID, path)
}

// RebuildEmbedding handles POST /api/v1/persons/{id}/embedding/rebuild.
func (h *PersonsHandler) RebuildEmbedding(w http.ResponseWriter, r *http.Request) {
	person := h.requirePerson(w, r)
	if person == nil {
		return
	}
	h.rebuild(w, r, person.ID, "")
}

func (h *PersonsHandler) rebuild(w http.ResponseWriter, r *http.Request, personID, path string) {
	vec, err := h.store.RebuildFromProvider(r.Context(), personID, h.images)
	if err != nil {
		status, msg := rebuildStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("rebuilding embedding failed", zap.String("person_id", personID), zap.Error(err))
		}
		respondError(w, status, msg)
		return
	}
	respondJSON(w, http.StatusOK, RebuildResponse{
		PersonID:  personID,
		Dim:       len(vec),
		ImagePath: path,
		RebuiltAt: time.Now(),
	})
}

// rebuildStatus maps a rebuild error to an HTTP status and message.
func rebuildStatus(err error) (int, string) {
	switch {
	case errors.Is(err, embeddings.ErrNoEnrollment):
		return http.StatusUnprocessableEntity, "no face detected in any reference image"
	case errors.Is(err, encoder.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "face model timed out"
	case errors.Is(err, encoder.ErrModelFailure):
		return http.StatusBadGateway, "face model failure"
	case errors.Is(err, embeddings.ErrPersistence):
		return http.StatusInternalServerError, "failed to persist embedding"
	default:
		return http.StatusInternalServerError, "failed to rebuild embedding"
	}
}

// ListAttempts handles GET /api/v1/persons/{id}/attempts.
func (h *PersonsHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), constants.DefaultAttemptLimit, constants.MaxAttemptLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	person := h.requirePerson(w, r)
	if person == nil {
		return
	}

	attempts, err := h.attempts.ListByPerson(r.Context(), person.ID, limit)
	if err != nil {
		h.logger.Error("listing attempts failed", zap.String("person_id", person.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []database.VerificationAttempt{}
	}
	respondJSON(w, http.StatusOK, AttemptsResponse{PersonID: person.ID, Attempts: attempts})
}
