// Package audit delivers verification attempts to durable sinks without
// blocking the decision path.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WKowalczykDev/EntranceControl/internal/audit/outbox"
	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// ErrSinkFailure marks an attempt that could not be written to a sink.
var ErrSinkFailure = errors.New("audit sink failure")

// Sink accepts attempt records. Implementations must be idempotent by
// attempt ID because retries may deliver the same record twice.
type Sink interface {
	Append(ctx context.Context, attempt database.VerificationAttempt) error
}

// Spool keeps undelivered attempts for later retry.
type Spool interface {
	Put(ctx context.Context, attempt database.VerificationAttempt, lastErr string) error
	Due(ctx context.Context, now time.Time, limit int) ([]outbox.Entry, error)
	Delete(ctx context.Context, attemptID string) error
	Reschedule(ctx context.Context, attemptID string, next time.Time, lastErr string) error
}

// MultiSink writes every attempt to all of its sinks. It fails when any
// sink fails; idempotent sinks make re-delivery to the healthy ones safe.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, attempt database.VerificationAttempt) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, attempt); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSinkFailure, errors.Join(errs...))
	}
	return nil
}
