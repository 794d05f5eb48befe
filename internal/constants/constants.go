// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum size of a multipart request with a face image (32 MB)
	MaxUploadSize = 32 << 20

	// MaxImageBytes is the maximum size of a single uploaded image (10 MB)
	MaxImageBytes = 10 << 20
)

// Attempt history constants
const (
	// DefaultAttemptLimit is the number of attempts returned when no limit is given
	DefaultAttemptLimit = 50

	// MaxAttemptLimit caps the limit query parameter of history endpoints
	MaxAttemptLimit = 1000
)

// Identification constants
const (
	// DefaultIdentifyLimit is the default number of candidates returned by identify
	DefaultIdentifyLimit = 5

	// MaxIdentifyLimit caps the number of identify candidates
	MaxIdentifyLimit = 50
)

// Rebuild constants
const (
	// RebuildWorkers is the number of persons rebuilt in parallel by the CLI
	RebuildWorkers = 4
)
