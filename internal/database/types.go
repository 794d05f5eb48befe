package database

import (
	"strings"
	"time"
)

// Person is an enrolled employee or visitor.
type Person struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Position  string    `json:"position,omitempty"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName returns "First Last", trimmed when either part is empty.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Gate is a physical entry point that submits verification attempts.
type Gate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Active   bool   `json:"active"`
}

// AccessToken is the possession factor. ValidUntil is a calendar date,
// its clock and zone carry no meaning.
type AccessToken struct {
	Value      string    `json:"value"`
	PersonID   string    `json:"person_id"`
	ValidUntil time.Time `json:"valid_until"`
	Active     bool      `json:"active"`
}

// ReferenceImage records an enrollment image stored for a person.
type ReferenceImage struct {
	ID       int64     `json:"id"`
	PersonID string    `json:"person_id"`
	Path     string    `json:"path"`
	Active   bool      `json:"active"`
	AddedAt  time.Time `json:"added_at"`
}

// StoredEmbedding is the reference vector of one person.
type StoredEmbedding struct {
	PersonID  string
	Vector    []float32
	UpdatedAt time.Time
}

// TokenResult is the outcome of the token check recorded on an attempt.
type TokenResult string

const (
	TokenOK      TokenResult = "OK"
	TokenInvalid TokenResult = "INVALID"
	TokenExpired TokenResult = "EXPIRED"
	// TokenUnchecked marks attempts where the token store could not be read.
	TokenUnchecked TokenResult = "N/A"
)

// BiometricResult is the outcome of the face comparison.
type BiometricResult string

const (
	BiometricMatch        BiometricResult = "MATCH"
	BiometricNoMatch      BiometricResult = "NO_MATCH"
	BiometricNotEvaluated BiometricResult = "N/A"
)

// Decision is the final verdict of an attempt.
type Decision string

const (
	DecisionGranted Decision = "GRANTED"
	DecisionDenied  Decision = "DENIED"
	DecisionError   Decision = "ERROR"
)

// Reason is a machine readable explanation of a non-granted decision.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInvalidToken       Reason = "InvalidToken"
	ReasonExpiredToken       Reason = "ExpiredToken"
	ReasonNoEnrollment       Reason = "NoEnrollment"
	ReasonBiometricMismatch  Reason = "BiometricMismatch"
	ReasonNoFaceDetected     Reason = "NoFaceDetected"
	ReasonModelFailure       Reason = "ModelFailure"
	ReasonPersistenceFailure Reason = "PersistenceFailure"
	ReasonInternal           Reason = "InternalError"
)

// VerificationAttempt is the immutable audit record of one decision.
type VerificationAttempt struct {
	ID                string          `json:"id"`
	GateID            string          `json:"gate_id"`
	PersonID          string          `json:"person_id,omitempty"`
	TokenResult       TokenResult     `json:"token_result"`
	BiometricResult   BiometricResult `json:"biometric_result"`
	Confidence        float64         `json:"confidence"`
	Decision          Decision        `json:"decision"`
	Reason            Reason          `json:"reason,omitempty"`
	EvidenceRef       string          `json:"evidence_ref,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
	FlaggedSuspicious bool            `json:"flagged_suspicious"`
}
