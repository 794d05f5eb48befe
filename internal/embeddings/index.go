package embeddings

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

const (
	// indexMaxNeighbors is the HNSW M parameter (max connections per node).
	indexMaxNeighbors = 16
	// indexEfSearch is the HNSW candidate list size during search.
	indexEfSearch = 64
)

// Candidate is one identification result.
type Candidate struct {
	PersonID string  `json:"person_id"`
	Distance float64 `json:"distance"`
}

// Index is an approximate nearest neighbour index over reference embeddings,
// used for 1:N identification.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	count int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Build replaces the index contents with the given embeddings.
func (x *Index) Build(entries []database.StoredEmbedding) error {
	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.EfSearch = indexEfSearch
	g.Distance = hnsw.CosineDistance

	count := 0
	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(e.PersonID, e.Vector))
		count++
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if count == 0 {
		x.graph = nil
	} else {
		x.graph = g
	}
	x.count = count
	return nil
}

// Len returns the number of indexed persons.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Search returns up to k candidates ordered by exact cosine distance.
func (x *Index) Search(query []float32, k int) []Candidate {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || k <= 0 {
		return nil
	}

	nodes := x.graph.Search(query, k)
	out := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Candidate{
			PersonID: n.Key,
			Distance: database.CosineDistance(query, n.Value),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}
