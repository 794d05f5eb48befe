package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// AttemptRepository stores verification attempts
type AttemptRepository struct {
	pool *Pool
}

// NewAttemptRepository creates a new PostgreSQL attempt repository
func NewAttemptRepository(pool *Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Append stores one attempt. Re-delivery of the same attempt ID is a no-op.
func (r *AttemptRepository) Append(ctx context.Context, a database.VerificationAttempt) error {
	var personID sql.NullString
	if a.PersonID != "" {
		personID = sql.NullString{String: a.PersonID, Valid: true}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO verification_attempts (
			id, gate_id, person_id, token_result, biometric_result, confidence,
			decision, reason, evidence_ref, flagged_suspicious, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.GateID, personID, string(a.TokenResult), string(a.BiometricResult), a.Confidence,
		string(a.Decision), string(a.Reason), a.EvidenceRef, a.FlaggedSuspicious, a.Timestamp)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.ID, err)
	}
	return nil
}

const attemptColumns = `
	id, gate_id, person_id, token_result, biometric_result, confidence,
	decision, reason, evidence_ref, flagged_suspicious, created_at
`

// ListByPerson returns the newest attempts of a person first
func (r *AttemptRepository) ListByPerson(ctx context.Context, personID string, limit int) ([]database.VerificationAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM verification_attempts
		WHERE person_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, personID, limitOrAll(limit))
}

// ListByGate returns the newest attempts at a gate first
func (r *AttemptRepository) ListByGate(ctx context.Context, gateID string, limit int) ([]database.VerificationAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM verification_attempts
		WHERE gate_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, gateID, limitOrAll(limit))
}

// limitOrAll maps a non-positive limit to SQL NULL, which LIMIT treats as no limit.
func limitOrAll(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}

func (r *AttemptRepository) list(ctx context.Context, query string, args ...any) ([]database.VerificationAttempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []database.VerificationAttempt
	for rows.Next() {
		var a database.VerificationAttempt
		var personID sql.NullString
		var tokenResult, biometricResult, decision, reason string
		if err := rows.Scan(
			&a.ID, &a.GateID, &personID, &tokenResult, &biometricResult, &a.Confidence,
			&decision, &reason, &a.EvidenceRef, &a.FlaggedSuspicious, &a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.PersonID = personID.String
		a.TokenResult = database.TokenResult(tokenResult)
		a.BiometricResult = database.BiometricResult(biometricResult)
		a.Decision = database.Decision(decision)
		a.Reason = database.Reason(reason)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}
