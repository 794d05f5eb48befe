// Package token checks the possession factor of a verification attempt.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

var (
	// ErrInvalidToken means no active token has the presented value.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the token exists but its validity date has passed.
	ErrExpiredToken = errors.New("expired token")
)

// Result identifies the token holder. It is filled for expired tokens too
// so that the attempt can still be attributed to a person.
type Result struct {
	PersonID   string
	ValidUntil time.Time
}

// Validator checks token values against the token store.
type Validator struct {
	reader database.TokenReader
	loc    *time.Location
}

// NewValidator creates a validator that evaluates validity dates in loc.
// A nil loc means time.Local.
func NewValidator(reader database.TokenReader, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.Local
	}
	return &Validator{reader: reader, loc: loc}
}

// Validate looks up value among active tokens and checks it against asOf.
// A token is valid through the whole of its valid_until day.
// Errors other than ErrInvalidToken and ErrExpiredToken are store failures.
func (v *Validator) Validate(ctx context.Context, value string, asOf time.Time) (Result, error) {
	if value == "" {
		return Result{}, ErrInvalidToken
	}

	tok, err := v.reader.FindActiveToken(ctx, value)
	if err != nil {
		return Result{}, fmt.Errorf("looking up token: %w", err)
	}
	if tok == nil || !tok.Active || tok.Value != value {
		return Result{}, ErrInvalidToken
	}

	res := Result{PersonID: tok.PersonID, ValidUntil: tok.ValidUntil}
	if calendarDate(tok.ValidUntil).Before(calendarDate(asOf.In(v.loc))) {
		return res, ErrExpiredToken
	}
	return res, nil
}

// calendarDate drops the clock and zone, keeping the date as written.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
