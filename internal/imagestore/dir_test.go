package imagestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSafeSegment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"42", "42"},
		{"Żaneta Łęcka", "Zaneta_Lecka"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"", "_"},
		{"..", "_"},
		{"a/b", "a_b"},
	}
	for _, tt := range tests {
		if got := safeSegment(tt.in); got != tt.want {
			t.Errorf("safeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDir_ReferenceImages(t *testing.T) {
	d := NewDir(t.TempDir())
	ctx := context.Background()

	images, err := d.ListImages(ctx, "42")
	if err != nil || images != nil {
		t.Fatalf("expected no images for unknown person, got %v %v", images, err)
	}

	if _, err := d.AddReferenceImage(ctx, "42", "b.png", []byte("second")); err != nil {
		t.Fatalf("AddReferenceImage: %v", err)
	}
	rel, err := d.AddReferenceImage(ctx, "42", "a.JPG", []byte("first"))
	if err != nil {
		t.Fatalf("AddReferenceImage: %v", err)
	}
	if rel != "reference/42/a.jpg" {
		t.Errorf("unexpected relative path %q", rel)
	}
	dup, err := d.AddReferenceImage(ctx, "42", "a.jpg", []byte("third"))
	if err != nil {
		t.Fatalf("AddReferenceImage: %v", err)
	}
	if dup == rel {
		t.Error("duplicate name should not overwrite the existing image")
	}

	// Non-image files are ignored.
	if err := os.WriteFile(filepath.Join(d.Root(), "reference", "42", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	images, err = d.ListImages(ctx, "42")
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	if string(images[0]) != "first" {
		t.Errorf("expected images sorted by name, got %q first", images[0])
	}
}

func TestDir_RejectsUnsupportedType(t *testing.T) {
	d := NewDir(t.TempDir())
	_, err := d.AddReferenceImage(context.Background(), "42", "face.gif", []byte("x"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestDir_SaveEvidence(t *testing.T) {
	d := NewDir(t.TempDir())
	d.now = func() time.Time { return time.Date(2026, 2, 3, 14, 5, 6, 0, time.UTC) }

	ref, err := d.SaveEvidence(context.Background(), "1", []byte("cam"))
	if err != nil {
		t.Fatalf("SaveEvidence: %v", err)
	}
	if !strings.HasPrefix(ref, "evidence/1/entry_1_20260203_140506_") || !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("unexpected evidence ref %q", ref)
	}

	data, err := os.ReadFile(filepath.Join(d.Root(), ref))
	if err != nil || string(data) != "cam" {
		t.Errorf("evidence not written: %v", err)
	}

	other, _ := d.SaveEvidence(context.Background(), "1", []byte("cam"))
	if other == ref {
		t.Error("two attempts in the same second must not share a file")
	}
}
