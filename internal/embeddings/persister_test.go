package embeddings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

func TestFilePersister_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "face_db.gob")
	p := NewFilePersister(path)
	ctx := context.Background()

	got, err := p.LoadAll(ctx)
	if err != nil {
		t.Fatalf("missing file should load as empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %d", len(got))
	}

	now := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	in := []database.StoredEmbedding{
		{PersonID: "1", Vector: []float32{0.25, -0.5, 1}, UpdatedAt: now},
		{PersonID: "2", Vector: []float32{1, 1, 1}, UpdatedAt: now},
	}
	if err := p.SaveAll(ctx, in); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	got, err = p.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 2 || got[0].PersonID != "1" || got[0].Vector[1] != -0.5 || !got[1].UpdatedAt.Equal(now) {
		t.Errorf("snapshot not round-tripped: %+v", got)
	}

	// A second save replaces the file and leaves no temp files behind.
	if err := p.SaveAll(ctx, in[:1]); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot file, found %d entries", len(entries))
	}
	got, _ = p.LoadAll(ctx)
	if len(got) != 1 {
		t.Errorf("expected 1 entry after replace, got %d", len(got))
	}
}

func TestFilePersister_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face_db.gob")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFilePersister(path).LoadAll(context.Background()); err == nil {
		t.Error("expected error for corrupt snapshot")
	}
}

func TestStore_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face_db.gob")
	enc := newVectorEncoder(map[string][]float32{"a": {1, 2, 3, 4}})

	first := NewStore(enc, NewFilePersister(path), testDim, nil)
	if _, err := first.Rebuild(context.Background(), "42", [][]byte{[]byte("a")}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	second := NewStore(enc, NewFilePersister(path), testDim, nil)
	if err := second.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	vec, ok := second.Lookup("42")
	if !ok || vec[3] != 4 {
		t.Errorf("expected reloaded vector, got %v %v", vec, ok)
	}
}
