// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// MockTokenReader is a mock implementation of database.TokenReader
type MockTokenReader struct {
	mu     sync.RWMutex
	tokens map[string]*database.AccessToken

	// Error injection
	FindError error
}

// NewMockTokenReader creates a new mock token reader
func NewMockTokenReader() *MockTokenReader {
	return &MockTokenReader{tokens: make(map[string]*database.AccessToken)}
}

// AddToken adds a token to the mock store
func (m *MockTokenReader) AddToken(tok database.AccessToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tok.Value] = &tok
}

// FindActiveToken returns an active token by exact value
func (m *MockTokenReader) FindActiveToken(ctx context.Context, value string) (*database.AccessToken, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[value]
	if !ok || !tok.Active {
		return nil, nil
	}
	cp := *tok
	return &cp, nil
}

// MockPersonReader is a mock implementation of database.PersonReader
type MockPersonReader struct {
	mu      sync.RWMutex
	persons map[string]*database.Person

	// Error injection
	GetError  error
	ListError error
}

// NewMockPersonReader creates a new mock person reader
func NewMockPersonReader() *MockPersonReader {
	return &MockPersonReader{persons: make(map[string]*database.Person)}
}

// AddPerson adds a person to the mock store
func (m *MockPersonReader) AddPerson(p database.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persons[p.ID] = &p
}

// GetPerson returns a person by ID
func (m *MockPersonReader) GetPerson(ctx context.Context, id string) (*database.Person, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.persons[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// ListPersons returns persons ordered by ID
func (m *MockPersonReader) ListPersons(ctx context.Context, activeOnly bool) ([]database.Person, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.Person, 0, len(m.persons))
	for _, p := range m.persons {
		if activeOnly && !p.Active {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MockGateReader is a mock implementation of database.GateReader
type MockGateReader struct {
	mu    sync.RWMutex
	gates map[string]*database.Gate

	// Error injection
	GetError error
}

// NewMockGateReader creates a new mock gate reader
func NewMockGateReader() *MockGateReader {
	return &MockGateReader{gates: make(map[string]*database.Gate)}
}

// AddGate adds a gate to the mock store
func (m *MockGateReader) AddGate(g database.Gate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gates[g.ID] = &g
}

// GetGate returns a gate by ID
func (m *MockGateReader) GetGate(ctx context.Context, id string) (*database.Gate, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gates[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

// MockAttemptStore is a mock implementation of database.AttemptWriter and database.AttemptReader
type MockAttemptStore struct {
	mu       sync.RWMutex
	attempts []database.VerificationAttempt
	appended chan struct{}

	// Error injection
	AppendError error
	ListError   error
	// FailAppends makes the next N appends fail with AppendError (0 = always while AppendError is set)
	FailAppends int
}

// NewMockAttemptStore creates a new mock attempt store
func NewMockAttemptStore() *MockAttemptStore {
	return &MockAttemptStore{appended: make(chan struct{}, 1024)}
}

// Append stores an attempt
func (m *MockAttemptStore) Append(ctx context.Context, attempt database.VerificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendError != nil {
		err := m.AppendError
		if m.FailAppends > 0 {
			m.FailAppends--
			if m.FailAppends == 0 {
				m.AppendError = nil
			}
		}
		return err
	}
	m.attempts = append(m.attempts, attempt)
	select {
	case m.appended <- struct{}{}:
	default:
	}
	return nil
}

// SetAppendError changes the injected append error under lock (test helper)
func (m *MockAttemptStore) SetAppendError(err error, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendError = err
	m.FailAppends = failures
}

// Attempts returns a copy of all stored attempts (test helper)
func (m *MockAttemptStore) Attempts() []database.VerificationAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.attempts)
}

// WaitForAttempts blocks until at least n attempts are stored or the timeout expires (test helper)
func (m *MockAttemptStore) WaitForAttempts(n int, timeout time.Duration) []database.VerificationAttempt {
	deadline := time.After(timeout)
	for {
		if got := m.Attempts(); len(got) >= n {
			return got
		}
		select {
		case <-m.appended:
		case <-deadline:
			return m.Attempts()
		}
	}
}

// ListByPerson returns the newest attempts of a person first
func (m *MockAttemptStore) ListByPerson(ctx context.Context, personID string, limit int) ([]database.VerificationAttempt, error) {
	return m.list(func(a database.VerificationAttempt) bool { return a.PersonID == personID }, limit)
}

// ListByGate returns the newest attempts at a gate first
func (m *MockAttemptStore) ListByGate(ctx context.Context, gateID string, limit int) ([]database.VerificationAttempt, error) {
	return m.list(func(a database.VerificationAttempt) bool { return a.GateID == gateID }, limit)
}

func (m *MockAttemptStore) list(keep func(database.VerificationAttempt) bool, limit int) ([]database.VerificationAttempt, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.VerificationAttempt
	for _, a := range m.attempts {
		if keep(a) {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MockReferenceImageWriter is a mock implementation of database.ReferenceImageWriter
type MockReferenceImageWriter struct {
	mu     sync.Mutex
	images []database.ReferenceImage

	// Error injection
	AddError error
}

// NewMockReferenceImageWriter creates a new mock reference image writer
func NewMockReferenceImageWriter() *MockReferenceImageWriter {
	return &MockReferenceImageWriter{}
}

// AddReferenceImage records an image path
func (m *MockReferenceImageWriter) AddReferenceImage(ctx context.Context, personID, path string) (*database.ReferenceImage, error) {
	if m.AddError != nil {
		return nil, m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	img := database.ReferenceImage{
		ID:       int64(len(m.images) + 1),
		PersonID: personID,
		Path:     path,
		Active:   true,
		AddedAt:  time.Now(),
	}
	m.images = append(m.images, img)
	return &img, nil
}

// Images returns all recorded images (test helper)
func (m *MockReferenceImageWriter) Images() []database.ReferenceImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.images)
}

// MockSnapshotStore is a mock implementation of database.EmbeddingSnapshotStore
type MockSnapshotStore struct {
	mu        sync.Mutex
	stored    []database.StoredEmbedding
	saveCount int

	// Error injection
	LoadError error
	SaveError error
}

// NewMockSnapshotStore creates a new mock snapshot store
func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{}
}

// Seed sets the stored snapshot without counting a save (test helper)
func (m *MockSnapshotStore) Seed(embeddings []database.StoredEmbedding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = cloneEmbeddings(embeddings)
}

// LoadAll returns the stored snapshot
func (m *MockSnapshotStore) LoadAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEmbeddings(m.stored), nil
}

// SaveAll replaces the stored snapshot
func (m *MockSnapshotStore) SaveAll(ctx context.Context, embeddings []database.StoredEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.stored = cloneEmbeddings(embeddings)
	m.saveCount++
	return nil
}

// SetSaveError changes the injected save error under lock (test helper)
func (m *MockSnapshotStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveError = err
}

// SaveCount returns how many successful saves happened (test helper)
func (m *MockSnapshotStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

// Stored returns the last saved snapshot (test helper)
func (m *MockSnapshotStore) Stored() []database.StoredEmbedding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEmbeddings(m.stored)
}

func cloneEmbeddings(in []database.StoredEmbedding) []database.StoredEmbedding {
	out := make([]database.StoredEmbedding, len(in))
	for i, e := range in {
		out[i] = database.StoredEmbedding{PersonID: e.PersonID, Vector: slices.Clone(e.Vector), UpdatedAt: e.UpdatedAt}
	}
	return out
}
