package handlers

import (
	"net/http"
	"time"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// EmbeddingStats exposes the reference embedding cache.
type EmbeddingStats interface {
	Dim() int
	Entries() []database.StoredEmbedding
}

// EmbeddingsHandler handles embedding cache endpoints.
type EmbeddingsHandler struct {
	store EmbeddingStats
}

// NewEmbeddingsHandler creates a new embeddings handler.
func NewEmbeddingsHandler(store EmbeddingStats) *EmbeddingsHandler {
	return &EmbeddingsHandler{store: store}
}

type EmbeddingEntry struct {
	PersonID  string    `json:"person_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EmbeddingsResponse struct {
	Count   int              `json:"count"`
	Dim     int              `json:"dim"`
	Persons []EmbeddingEntry `json:"persons"`
}

// Stats handles GET /api/v1/embeddings.
func (h *EmbeddingsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	entries := h.store.Entries()
	persons := make([]EmbeddingEntry, 0, len(entries))
	for _, e := range entries {
		persons = append(persons, EmbeddingEntry{PersonID: e.PersonID, UpdatedAt: e.UpdatedAt})
	}
	respondJSON(w, http.StatusOK, EmbeddingsResponse{
		Count:   len(persons),
		Dim:     h.store.Dim(),
		Persons: persons,
	})
}
