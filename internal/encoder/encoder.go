// Package encoder turns face images into embedding vectors using an
// external face recognition model.
package encoder

import (
	"context"
	"errors"
)

var (
	// ErrNoFaceDetected means the image was processed but contains no face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrModelFailure means the model could not process the image.
	ErrModelFailure = errors.New("face model failure")
	// ErrTimeout is a ModelFailure caused by the call exceeding its time budget.
	ErrTimeout = errors.New("face model timed out")
)

// Encoder computes a face embedding for an image.
type Encoder interface {
	// Encode returns the embedding of the most prominent face in image.
	Encode(ctx context.Context, image []byte) ([]float32, error)
}

// timeoutError wraps both ErrModelFailure and ErrTimeout.
func timeoutError(cause error) error {
	return errors.Join(ErrModelFailure, ErrTimeout, cause)
}
