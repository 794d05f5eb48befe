package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

const (
	deliveryAttempts = 3
	deliveryBackoff  = 50 * time.Millisecond
	deliveryTimeout  = 5 * time.Second
)

// Dispatcher queues attempts and writes them to a Sink on background
// workers. Attempts the sink rejects after a few tries go to the Spool.
// Emit never blocks and never reports failure to the caller.
type Dispatcher struct {
	sink   Sink
	spool  Spool
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan database.VerificationAttempt
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of queueSize.
// spool may be nil, in which case undeliverable attempts are only logged.
func NewDispatcher(sink Sink, spool Spool, queueSize, workers int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		sink:   sink,
		spool:  spool,
		logger: logger,
		queue:  make(chan database.VerificationAttempt, queueSize),
	}
	for range workers {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Emit hands an attempt to the background workers. When the queue is full
// the attempt is spooled on its own goroutine; after Close it is spooled
// synchronously.
func (d *Dispatcher) Emit(attempt database.VerificationAttempt) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.toSpool(attempt, errors.New("audit dispatcher closed"))
		return
	}
	select {
	case d.queue <- attempt:
		d.mu.RUnlock()
		return
	default:
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	d.logger.Warn("audit queue full, spooling attempt", zap.String("attempt_id", attempt.ID))
	go func() {
		defer d.wg.Done()
		d.toSpool(attempt, errors.New("audit queue full"))
	}()
}

// Close stops accepting attempts and waits until queued ones are delivered
// or spooled, or until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for attempt := range d.queue {
		if err := d.deliver(attempt); err != nil {
			d.toSpool(attempt, err)
		}
	}
}

func (d *Dispatcher) deliver(attempt database.VerificationAttempt) error {
	var err error
	backoff := deliveryBackoff
	for i := range deliveryAttempts {
		if i > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err = d.sink.Append(ctx, attempt)
		cancel()
		if err == nil {
			return nil
		}
		d.logger.Warn("audit append failed",
			zap.String("attempt_id", attempt.ID),
			zap.Int("try", i+1),
			zap.Error(err))
	}
	return err
}

func (d *Dispatcher) toSpool(attempt database.VerificationAttempt, cause error) {
	if d.spool == nil {
		d.logger.Error("audit attempt lost, no outbox configured",
			zap.String("attempt_id", attempt.ID),
			zap.String("gate_id", attempt.GateID),
			zap.String("decision", string(attempt.Decision)),
			zap.Error(cause))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := d.spool.Put(ctx, attempt, cause.Error()); err != nil {
		d.logger.Error("audit attempt lost, outbox write failed",
			zap.String("attempt_id", attempt.ID),
			zap.String("gate_id", attempt.GateID),
			zap.String("decision", string(attempt.Decision)),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	d.logger.Info("audit attempt spooled for retry", zap.String("attempt_id", attempt.ID))
}
