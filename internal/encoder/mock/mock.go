package mock

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/encoder"
)

const embeddingDimension = 512

// minImageSize filters out payloads too small to be a real photo; the mock
// treats them as containing no face
const minImageSize = 1000

// Encoder implements encoder.Encoder for tests and development. Embeddings
// are derived from a hash of the image bytes, so identical bytes always
// produce identical unit-length vectors.
type Encoder struct{}

var _ encoder.Encoder = (*Encoder)(nil)

func New() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Encode(ctx context.Context, image []byte) ([]float64, error) {
	if len(image) < minImageSize {
		return nil, domain.ErrNoFaceDetected
	}

	return generateEmbedding(image), nil
}

// generateEmbedding derives a deterministic unit-length embedding from the
// image hash
func generateEmbedding(image []byte) []float64 {
	hash := sha256.Sum256(image)
	embedding := make([]float64, embeddingDimension)
	hashLen := len(hash)

	for i := 0; i < embeddingDimension; i++ {
		idx := i % hashLen
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}
