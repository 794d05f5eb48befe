// Package mock provides a deterministic face encoder for tests.
package mock

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
)

// MockEncoder returns preset results keyed by image content.
// Unknown images yield encoder.ErrNoFaceDetected.
type MockEncoder struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	errs    map[string]error
	calls   atomic.Int64

	// Gate, when set, blocks every call until it is closed or the context ends.
	Gate chan struct{}
	// Err, when set, is returned for every call.
	Err error
}

// NewMockEncoder creates an empty mock encoder
func NewMockEncoder() *MockEncoder {
	return &MockEncoder{
		vectors: make(map[string][]float32),
		errs:    make(map[string]error),
	}
}

// SetVector registers the embedding returned for image
func (m *MockEncoder) SetVector(image []byte, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[string(image)] = slices.Clone(vec)
}

// SetError registers the error returned for image
func (m *MockEncoder) SetError(image []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[string(image)] = err
}

// Calls returns the number of Encode calls so far
func (m *MockEncoder) Calls() int {
	return int(m.calls.Load())
}

// Encode implements encoder.Encoder
func (m *MockEncoder) Encode(ctx context.Context, image []byte) ([]float32, error) {
	m.calls.Add(1)

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.errs[string(image)]; ok {
		return nil, err
	}
	if vec, ok := m.vectors[string(image)]; ok {
		return slices.Clone(vec), nil
	}
	return nil, encoder.ErrNoFaceDetected
}
