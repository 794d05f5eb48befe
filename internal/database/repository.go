package database

import "context"

// TokenReader provides read access to access tokens
type TokenReader interface {
	// FindActiveToken returns the active token with exactly this value, or nil if none exists
	FindActiveToken(ctx context.Context, value string) (*AccessToken, error)
}

// PersonReader provides read access to persons
type PersonReader interface {
	// GetPerson returns a person by ID, or nil if not found
	GetPerson(ctx context.Context, id string) (*Person, error)
	// ListPersons returns persons ordered by ID, optionally only active ones
	ListPersons(ctx context.Context, activeOnly bool) ([]Person, error)
}

// GateReader provides read access to gates
type GateReader interface {
	// GetGate returns a gate by ID, or nil if not found
	GetGate(ctx context.Context, id string) (*Gate, error)
}

// AttemptWriter appends verification attempts to durable storage
type AttemptWriter interface {
	// Append stores one attempt; attempts are never updated
	Append(ctx context.Context, attempt VerificationAttempt) error
}

// AttemptReader provides read access to stored verification attempts
type AttemptReader interface {
	// ListByPerson returns the newest attempts of a person first
	ListByPerson(ctx context.Context, personID string, limit int) ([]VerificationAttempt, error)
	// ListByGate returns the newest attempts at a gate first
	ListByGate(ctx context.Context, gateID string, limit int) ([]VerificationAttempt, error)
}

// ReferenceImageWriter records uploaded enrollment images
type ReferenceImageWriter interface {
	// AddReferenceImage records the stored path of a new enrollment image
	AddReferenceImage(ctx context.Context, personID, path string) (*ReferenceImage, error)
}

// EmbeddingSnapshotStore persists the complete set of reference embeddings
type EmbeddingSnapshotStore interface {
	// LoadAll returns every stored reference embedding
	LoadAll(ctx context.Context) ([]StoredEmbedding, error)
	// SaveAll atomically replaces the stored set with the given embeddings
	SaveAll(ctx context.Context, embeddings []StoredEmbedding) error
}
