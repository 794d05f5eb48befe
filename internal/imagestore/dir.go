// Package imagestore keeps enrollment and evidence images on the local
// filesystem.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	referenceDir = "reference"
	evidenceDir  = "evidence"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ErrUnsupportedImage is returned for uploads with an extension other than jpg, jpeg or png.
var ErrUnsupportedImage = errors.New("unsupported image type")

// Dir stores images under root:
//
//	<root>/reference/<person>/<file>
//	<root>/evidence/<gate>/entry_<gate>_<timestamp>_<id>.jpg
type Dir struct {
	root string
	now  func() time.Time
}

// NewDir creates an image store rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root, now: time.Now}
}

// Root returns the storage root.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) personDir(personID string) string {
	return filepath.Join(d.root, referenceDir, safeSegment(personID))
}

// ListImages returns the enrollment images of a person sorted by file name.
// A person without a directory has no images.
func (d *Dir) ListImages(ctx context.Context, personID string) ([][]byte, error) {
	dir := d.personDir(personID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading enrollment directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	images := make([][]byte, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // path built from sanitized segments
		if err != nil {
			return nil, fmt.Errorf("reading enrollment image %s: %w", name, err)
		}
		images = append(images, data)
	}
	return images, nil
}

// AddReferenceImage stores an enrollment image and returns its path
// relative to the root. An existing file with the same name is not replaced.
func (d *Dir) AddReferenceImage(ctx context.Context, personID, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}

	dir := d.personDir(personID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating enrollment directory: %w", err)
	}

	base := safeSegment(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	name := base + ext
	if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
		name = fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing enrollment image: %w", err)
	}
	return d.relative(path), nil
}

// SaveEvidence stores the image presented at a gate and returns its path
// relative to the root.
func (d *Dir) SaveEvidence(ctx context.Context, gateID string, data []byte) (string, error) {
	gate := safeSegment(gateID)
	dir := filepath.Join(d.root, evidenceDir, gate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating evidence directory: %w", err)
	}

	name := fmt.Sprintf("entry_%s_%s_%s.jpg", gate, d.now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing evidence image: %w", err)
	}
	return d.relative(path), nil
}

func (d *Dir) relative(path string) string {
	if rel, err := filepath.Rel(d.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
