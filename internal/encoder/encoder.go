package encoder

import (
	"context"
	"errors"
)

// ErrBackendUnavailable indicates the encoding backend could not be reached.
// Implementations wrap it so callers can distinguish a dead backend from a
// usable image that simply contains no face.
var ErrBackendUnavailable = errors.New("encoder backend unavailable")

// Encoder turns raw image bytes into one fixed-length face embedding.
//
// When the image contains multiple faces, implementations must apply the same
// deterministic rule: the face with the largest bounding-box area wins, ties
// broken by first-reported order. Returned embeddings are normalized to unit
// length so Euclidean distances between them stay within [0, 2].
//
// Returns domain.ErrNoFaceDetected when no face is found. Implementations
// hold no shared mutable state and are safe for concurrent use.
type Encoder interface {
	Encode(ctx context.Context, image []byte) ([]float64, error)
}
