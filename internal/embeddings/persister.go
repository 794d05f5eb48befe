package embeddings

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

const snapshotVersion = 1

type snapshotEntry struct {
	PersonID  string
	Vector    []float32
	UpdatedAt time.Time
}

type snapshot struct {
	Version int
	Entries []snapshotEntry
}

// FilePersister stores the embedding snapshot as a single gob file that is
// replaced atomically on every save.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the snapshot file path.
func (p *FilePersister) Path() string {
	return p.path
}

// LoadAll reads the snapshot. A missing file is an empty store.
func (p *FilePersister) LoadAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding embedding snapshot %s: %w", p.path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported embedding snapshot version %d", snap.Version)
	}

	out := make([]database.StoredEmbedding, len(snap.Entries))
	for i, e := range snap.Entries {
		out[i] = database.StoredEmbedding{PersonID: e.PersonID, Vector: e.Vector, UpdatedAt: e.UpdatedAt}
	}
	return out, nil
}

// SaveAll writes the snapshot to a temporary file and renames it over the
// previous one, so a crash leaves either the old or the new snapshot.
func (p *FilePersister) SaveAll(ctx context.Context, embeddings []database.StoredEmbedding) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := snapshot{Version: snapshotVersion, Entries: make([]snapshotEntry, len(embeddings))}
	for i, e := range embeddings {
		snap.Entries[i] = snapshotEntry{PersonID: e.PersonID, Vector: e.Vector, UpdatedAt: e.UpdatedAt}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encoding embedding snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := renameio.WriteFile(p.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing embedding snapshot: %w", err)
	}
	return nil
}
