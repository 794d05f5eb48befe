package encoder

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limited bounds how many Encode calls run at once and how long each may take.
type Limited struct {
	next    Encoder
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewLimited wraps next. concurrency <= 0 means 1; timeout <= 0 disables the deadline.
func NewLimited(next Encoder, concurrency int, timeout time.Duration) *Limited {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Limited{
		next:    next,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
	}
}

// Encode waits for a free slot and calls the wrapped encoder within the
// time budget. Waiting for a slot counts against the budget.
func (l *Limited) Encode(ctx context.Context, image []byte) ([]float32, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, contextError(err)
	}
	defer l.sem.Release(1)

	vec, err := l.next.Encode(ctx, image)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrNoFaceDetected) {
			return nil, contextError(ctx.Err())
		}
		return nil, err
	}
	return vec, nil
}

// contextError maps context expiry to a timeout and cancellation to a model failure.
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError(err)
	}
	return errors.Join(ErrModelFailure, err)
}
