package rekognition

import (
	"context"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/matcher"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Matcher is the remote-collection strategy: storage and nearest-neighbor
// search are delegated to an AWS Rekognition collection, with identity keys
// carried as ExternalImageId. The service's similarity percentages are used
// as-is; nothing is recomputed locally.
type Matcher struct {
	client *Client
}

var _ matcher.Matcher = (*Matcher)(nil)

// NewMatcher creates the remote strategy and ensures the configured
// collection exists, creating it if absent
func NewMatcher(ctx context.Context, cfg Config) (*Matcher, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	if err := client.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", cfg.CollectionID, err)
	}

	return &Matcher{client: client}, nil
}

// NewMatcherWithClient wires a pre-built client, used by tests
func NewMatcherWithClient(client *Client) *Matcher {
	return &Matcher{client: client}
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// Enroll indexes the image under the identity key in the collection.
// Re-enrolling the same key adds the new face under the same ExternalImageId,
// so searches keep resolving to the identity. The embedding parameter is
// ignored; the collection owns the vectors.
func (m *Matcher) Enroll(ctx context.Context, key string, image []byte, embedding []float64) error {
	if err := validateImage(image); err != nil {
		return fmt.Errorf("enroll %q: %w", key, err)
	}

	input := &rekognition.IndexFacesInput{
		CollectionId:    aws.String(m.client.config.CollectionID),
		ExternalImageId: aws.String(key),
		Image: &types.Image{
			Bytes: image,
		},
		MaxFaces:      aws.Int32(1), // Only index the most prominent face
		QualityFilter: types.QualityFilterAuto,
		DetectionAttributes: []types.Attribute{
			types.AttributeDefault,
		},
	}

	output, err := m.client.rekognition.IndexFaces(ctx, input)
	if err != nil {
		if noFace := parseNoFaceError(err); noFace != nil {
			return fmt.Errorf("enroll %q: %w", key, noFace)
		}
		if isUnavailable(err) {
			return fmt.Errorf("enroll %q: %w: %v", key, matcher.ErrUnavailable, err)
		}
		return fmt.Errorf("enroll %q: index face: %w", key, err)
	}

	if len(output.FaceRecords) == 0 {
		return fmt.Errorf("enroll %q: %w", key, ErrNoFaceDetected)
	}

	return nil
}

// Search asks the collection for up to MaxFaces matches at or above the
// configured similarity threshold, best first
func (m *Matcher) Search(ctx context.Context, q matcher.Query) ([]matcher.Match, error) {
	if err := validateImage(q.Image); err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}

	input := &rekognition.SearchFacesByImageInput{
		CollectionId: aws.String(m.client.config.CollectionID),
		Image: &types.Image{
			Bytes: q.Image,
		},
		MaxFaces:           aws.Int32(int32(m.client.config.MaxFaces)),
		FaceMatchThreshold: aws.Float32(float32(m.client.config.Threshold)),
	}

	output, err := m.client.rekognition.SearchFacesByImage(ctx, input)
	if err != nil {
		if noFace := parseNoFaceError(err); noFace != nil {
			return nil, fmt.Errorf("search collection: %w", noFace)
		}
		if isUnavailable(err) {
			return nil, fmt.Errorf("search collection: %w: %v", matcher.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("search collection: %w", err)
	}

	matches := make([]matcher.Match, 0, len(output.FaceMatches))
	for _, faceMatch := range output.FaceMatches {
		if faceMatch.Face == nil || faceMatch.Face.ExternalImageId == nil || faceMatch.Similarity == nil {
			continue
		}

		matches = append(matches, matcher.Match{
			Key:        *faceMatch.Face.ExternalImageId,
			Confidence: roundConfidence(float64(*faceMatch.Similarity)),
			Source:     domain.SourceRemoteCollection,
		})
	}

	return matches, nil
}

// roundConfidence rounds the service's similarity percentage to two decimals
func roundConfidence(similarity float64) float64 {
	return math.Round(similarity*100) / 100
}
