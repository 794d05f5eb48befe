package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	retryBatch      = 100
	retryMaxBackoff = time.Hour
)

// Retrier periodically re-delivers spooled attempts.
type Retrier struct {
	sink     Sink
	spool    Spool
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetrier creates a retry loop over spool. A nil logger disables logging.
func NewRetrier(sink Sink, spool Spool, interval time.Duration, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Retrier{
		sink:     sink,
		spool:    spool,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the retry loop until Stop is called or ctx ends. Calling
// Start twice is a no-op.
func (r *Retrier) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

// Stop ends the loop and waits for the current pass to finish.
func (r *Retrier) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Retrier) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce makes one pass over the due entries and returns how many were
// delivered.
func (r *Retrier) RunOnce(ctx context.Context) int {
	now := r.now()
	entries, err := r.spool.Due(ctx, now, retryBatch)
	if err != nil {
		r.logger.Error("reading audit outbox", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		id := e.Attempt.ID
		if err := r.sink.Append(ctx, e.Attempt); err != nil {
			next := now.Add(backoff(r.interval, e.Tries+1))
			if rerr := r.spool.Reschedule(ctx, id, next, err.Error()); rerr != nil {
				r.logger.Error("rescheduling audit attempt", zap.String("attempt_id", id), zap.Error(rerr))
			}
			r.logger.Warn("audit retry failed",
				zap.String("attempt_id", id),
				zap.Int("tries", e.Tries+1),
				zap.Time("next_at", next),
				zap.Error(err))
			continue
		}
		if err := r.spool.Delete(ctx, id); err != nil {
			r.logger.Error("removing delivered audit attempt", zap.String("attempt_id", id), zap.Error(err))
			continue
		}
		delivered++
	}
	if delivered > 0 {
		r.logger.Info("audit outbox drained", zap.Int("delivered", delivered), zap.Int("due", len(entries)))
	}
	return delivered
}

// backoff doubles the interval per try, capped at retryMaxBackoff.
func backoff(interval time.Duration, tries int) time.Duration {
	d := interval
	for i := 1; i < tries; i++ {
		d *= 2
		if d >= retryMaxBackoff {
			return retryMaxBackoff
		}
	}
	return d
}
