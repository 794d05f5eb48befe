// Package embeddings keeps the reference face embedding of every enrolled
// person in memory, rebuilds entries from enrollment images on demand and
// persists the whole set after every change.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
)

var (
	// ErrNoEnrollment means no enrollment image of the person yielded a face.
	ErrNoEnrollment = errors.New("no enrollment")
	// ErrPersistence means the store could not be written to durable storage.
	ErrPersistence = errors.New("embedding persistence failure")
)

// ImageProvider lists the enrollment images of a person.
type ImageProvider interface {
	ListImages(ctx context.Context, personID string) ([][]byte, error)
}

// Store is the in-memory reference embedding cache.
//
// Lookups take a read lock only and never observe a partially built
// vector. Builds of one person are serialized by a per-person lock, and
// concurrent GetOrBuild callers for an uncached person share a single
// encoder pass. A new vector becomes visible only after the complete store
// including it has been persisted.
type Store struct {
	dim       int
	encoder   encoder.Encoder
	snapshots database.EmbeddingSnapshotStore
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]database.StoredEmbedding

	// flushMu orders persisting, publishing and indexing across persons.
	flushMu sync.Mutex
	group   singleflight.Group
	index   *Index

	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

// NewStore creates an empty store for vectors of dimension dim.
func NewStore(enc encoder.Encoder, snapshots database.EmbeddingSnapshotStore, dim int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dim:       dim,
		encoder:   enc,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]database.StoredEmbedding),
		index:     NewIndex(),
		keys:      make(map[string]*sync.Mutex),
	}
}

// Load replaces the cache with the persisted snapshot.
func (s *Store) Load(ctx context.Context) error {
	stored, err := s.snapshots.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading snapshot: %w", ErrPersistence, err)
	}

	entries := make(map[string]database.StoredEmbedding, len(stored))
	for _, e := range stored {
		if len(e.Vector) != s.dim {
			return fmt.Errorf("%w: stored embedding of %s has %d dimensions, expected %d",
				ErrPersistence, e.PersonID, len(e.Vector), s.dim)
		}
		entries[e.PersonID] = e
	}

	s.flushMu.Lock()
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	s.refreshIndex(s.Entries())
	s.flushMu.Unlock()

	s.logger.Info("embedding store loaded", zap.Int("persons", len(entries)), zap.Int("dim", s.dim))
	return nil
}

// Dim returns the embedding dimension.
func (s *Store) Dim() int {
	return s.dim
}

// Len returns the number of cached persons.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Lookup returns a copy of the cached vector without rebuilding.
func (s *Store) Lookup(personID string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[personID]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.Vector), true
}

// Entries returns copies of all cached embeddings ordered by person ID.
func (s *Store) Entries() []database.StoredEmbedding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.StoredEmbedding, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, database.StoredEmbedding{
			PersonID:  e.PersonID,
			Vector:    slices.Clone(e.Vector),
			UpdatedAt: e.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out
}

// GetOrBuild returns the cached vector or builds it from the provider's images.
func (s *Store) GetOrBuild(ctx context.Context, personID string, provider ImageProvider) ([]float32, error) {
	if vec, ok := s.Lookup(personID); ok {
		return vec, nil
	}

	ch := s.group.DoChan(personID, func() (any, error) {
		return s.locked(context.WithoutCancel(ctx), personID, func(ctx context.Context) ([]float32, error) {
			// A rebuild may have finished while we waited for the lock.
			if vec, ok := s.Lookup(personID); ok {
				return vec, nil
			}
			return s.buildFromProvider(ctx, personID, provider)
		})
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]float32)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RebuildFromProvider rebuilds the entry from the provider's current images
// even when a cached vector exists. Images are listed only after any build
// already running for the person has finished.
func (s *Store) RebuildFromProvider(ctx context.Context, personID string, provider ImageProvider) ([]float32, error) {
	return s.detached(ctx, personID, func(ctx context.Context) ([]float32, error) {
		return s.buildFromProvider(ctx, personID, provider)
	})
}

// Rebuild encodes images, stores their mean vector as the person's
// reference and flushes the store.
func (s *Store) Rebuild(ctx context.Context, personID string, images [][]byte) ([]float32, error) {
	return s.detached(ctx, personID, func(ctx context.Context) ([]float32, error) {
		return s.build(ctx, personID, images)
	})
}

// detached runs fn under the person's lock on a context detached from the
// caller, so an abandoned request cannot leave a half-finished rebuild.
// The caller stops waiting when ctx ends.
func (s *Store) detached(ctx context.Context, personID string, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	type result struct {
		vec []float32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vec, err := s.locked(context.WithoutCancel(ctx), personID, fn)
		ch <- result{vec, err}
	}()

	select {
	case res := <-ch:
		return res.vec, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) locked(ctx context.Context, personID string, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	mu := s.personLock(personID)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}

func (s *Store) personLock(personID string) *sync.Mutex {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	mu, ok := s.keys[personID]
	if !ok {
		mu = &sync.Mutex{}
		s.keys[personID] = mu
	}
	return mu
}

func (s *Store) buildFromProvider(ctx context.Context, personID string, provider ImageProvider) ([]float32, error) {
	images, err := provider.ListImages(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("listing enrollment images of %s: %w", personID, err)
	}
	return s.build(ctx, personID, images)
}

func (s *Store) build(ctx context.Context, personID string, images [][]byte) ([]float32, error) {
	log := s.logger.With(zap.String("person_id", personID))

	var vectors [][]float32
	var modelErr error
	for i, img := range images {
		vec, err := s.encoder.Encode(ctx, img)
		switch {
		case err == nil && len(vec) != s.dim:
			modelErr = fmt.Errorf("%w: embedding has %d dimensions, expected %d", encoder.ErrModelFailure, len(vec), s.dim)
			log.Warn("discarding enrollment image", zap.Int("image", i), zap.Error(modelErr))
		case err == nil:
			vectors = append(vectors, vec)
		case errors.Is(err, encoder.ErrNoFaceDetected):
			log.Info("no face in enrollment image", zap.Int("image", i))
		default:
			modelErr = err
			log.Warn("encoding enrollment image failed", zap.Int("image", i), zap.Error(err))
		}
	}

	if len(vectors) == 0 {
		if modelErr != nil {
			return nil, fmt.Errorf("rebuilding embedding of %s: %w", personID, modelErr)
		}
		return nil, fmt.Errorf("%w: %s has %d enrollment images and none contains a face",
			ErrNoEnrollment, personID, len(images))
	}

	entry := database.StoredEmbedding{
		PersonID:  personID,
		Vector:    MeanVector(vectors),
		UpdatedAt: s.now(),
	}
	if err := s.commit(ctx, entry); err != nil {
		log.Error("flushing embedding store failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	log.Info("reference embedding rebuilt", zap.Int("images", len(images)), zap.Int("faces", len(vectors)))
	return slices.Clone(entry.Vector), nil
}

// commit persists the store with entry in place and only then publishes
// entry to readers. On failure the cache is left untouched.
func (s *Store) commit(ctx context.Context, entry database.StoredEmbedding) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	snapshot := withEntry(s.Entries(), entry)
	if err := s.snapshots.SaveAll(ctx, snapshot); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[entry.PersonID] = entry
	s.mu.Unlock()

	s.refreshIndex(snapshot)
	return nil
}

// withEntry returns entries with entry added or replaced, ordered by person ID.
func withEntry(entries []database.StoredEmbedding, entry database.StoredEmbedding) []database.StoredEmbedding {
	i, found := slices.BinarySearchFunc(entries, entry.PersonID, func(e database.StoredEmbedding, id string) int {
		return strings.Compare(e.PersonID, id)
	})
	if found {
		entries[i] = entry
		return entries
	}
	return slices.Insert(entries, i, entry)
}

// refreshIndex must be called with flushMu held.
func (s *Store) refreshIndex(entries []database.StoredEmbedding) {
	if err := s.index.Build(entries); err != nil {
		s.logger.Warn("rebuilding identification index failed", zap.Error(err))
	}
}

// Identify returns up to k enrolled persons closest to vec.
func (s *Store) Identify(vec []float32, k int) ([]Candidate, error) {
	if len(vec) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", encoder.ErrModelFailure, len(vec), s.dim)
	}
	return s.index.Search(vec, k), nil
}

// MeanVector returns the component-wise mean of equally sized vectors.
// Inputs are summed in a canonical order so the result does not depend on
// the order in which they were passed.
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	ordered := slices.Clone(vectors)
	slices.SortFunc(ordered, func(a, b []float32) int { return slices.Compare(a, b) })

	sum := make([]float64, len(ordered[0]))
	for _, v := range ordered {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	mean := make([]float32, len(sum))
	n := float64(len(ordered))
	for i, x := range sum {
		mean[i] = float32(x / n)
	}
	return mean
}
