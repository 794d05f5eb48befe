package encoder_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
	"github.com/WKowalczykDev/EntranceControl/internal/encoder/mock"
)

func TestLimited_Timeout(t *testing.T) {
	m := mock.NewMockEncoder()
	m.Gate = make(chan struct{}) // never released

	l := encoder.NewLimited(m, 1, 30*time.Millisecond)
	_, err := l.Encode(context.Background(), []byte("img"))
	if !errors.Is(err, encoder.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, encoder.ErrModelFailure) {
		t.Errorf("timeout should also be a model failure, got %v", err)
	}
}

func TestLimited_PassesThroughResults(t *testing.T) {
	m := mock.NewMockEncoder()
	m.SetVector([]byte("a"), []float32{1, 2})

	l := encoder.NewLimited(m, 2, time.Second)
	vec, err := l.Encode(context.Background(), []byte("a"))
	if err != nil || len(vec) != 2 {
		t.Fatalf("unexpected result %v %v", vec, err)
	}
	if _, err := l.Encode(context.Background(), []byte("b")); !errors.Is(err, encoder.ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

type countingEncoder struct {
	active, peak atomic.Int32
}

func (c *countingEncoder) Encode(ctx context.Context, image []byte) ([]float32, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return []float32{1}, nil
}

func TestLimited_BoundsConcurrency(t *testing.T) {
	inner := &countingEncoder{}
	l := encoder.NewLimited(inner, 2, time.Second)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Encode(context.Background(), []byte("x"))
		}()
	}
	wg.Wait()

	if peak := inner.peak.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak)
	}
}
