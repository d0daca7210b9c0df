package deepface

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/encoder"
)

// Encoder implements encoder.Encoder using the DeepFace represent endpoint
type Encoder struct {
	client *Client
}

var _ encoder.Encoder = (*Encoder)(nil)

// NewEncoder creates a new DeepFace encoder
func NewEncoder(config Config) *Encoder {
	return &Encoder{
		client: NewClient(config),
	}
}

// Encode extracts one face embedding from the image. When DeepFace reports
// several faces, the one with the largest facial area is used; ties keep the
// first result, so repeated calls on the same bytes pick the same face.
func (e *Encoder) Encode(ctx context.Context, image []byte) ([]float64, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("encode: %w", ErrInvalidImageFormat)
	}

	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := e.client.Represent(ctx, imageBase64)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("encode: %w", domain.ErrNoFaceDetected)
	}

	best := resp.Results[0]
	bestArea := best.FacialArea.W * best.FacialArea.H
	for _, result := range resp.Results[1:] {
		if area := result.FacialArea.W * result.FacialArea.H; area > bestArea {
			best = result
			bestArea = area
		}
	}

	if len(best.Embedding) == 0 {
		return nil, fmt.Errorf("encode: %w", ErrInvalidResponse)
	}

	return NormalizeEmbedding(best.Embedding), nil
}

// NormalizeEmbedding normalizes an embedding vector to unit length so that
// downstream distance computations stay bounded.
func NormalizeEmbedding(embedding []float64) []float64 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float64
	for _, v := range embedding {
		norm += v * v
	}

	if norm == 0 {
		return embedding
	}

	norm = math.Sqrt(norm)
	normalized := make([]float64, len(embedding))
	for i, v := range embedding {
		normalized[i] = v / norm
	}

	return normalized
}
