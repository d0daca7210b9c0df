package local

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/matcher"
)

// DefaultCutoff is the reference distance cutoff: a distance strictly below
// it qualifies as a match
const DefaultCutoff = 0.6

// IdentityLister provides the registry snapshot the scan runs over
type IdentityLister interface {
	All(ctx context.Context) ([]domain.Identity, error)
}

// Matcher is the local strategy: an exhaustive Euclidean scan over the
// registry. Embeddings are unit-normalized by the encoder, so distances stay
// within [0, 2] and the distance-to-confidence conversion below is
// well-defined; confidence is clamped regardless.
type Matcher struct {
	registry IdentityLister
	cutoff   float64
}

var _ matcher.Matcher = (*Matcher)(nil)

func New(registry IdentityLister, cutoff float64) *Matcher {
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}
	return &Matcher{
		registry: registry,
		cutoff:   cutoff,
	}
}

// Enroll is a no-op for the local strategy: the registry upsert performed by
// the caller already stores everything the scan needs.
func (m *Matcher) Enroll(ctx context.Context, key string, image []byte, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("enroll %q: empty embedding", key)
	}
	return nil
}

// Search scans every enrolled identity and returns those whose distance to
// the query embedding is strictly below the cutoff, best first. The result
// is deterministic for a fixed snapshot and query.
func (m *Matcher) Search(ctx context.Context, q matcher.Query) ([]matcher.Match, error) {
	identities, err := m.registry.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", matcher.ErrUnavailable, err)
	}

	var matches []matcher.Match
	for _, identity := range identities {
		// identities enrolled under the remote strategy carry no local vector
		if len(identity.Embedding) != len(q.Embedding) || len(identity.Embedding) == 0 {
			continue
		}

		distance := euclideanDistance(identity.Embedding, q.Embedding)
		if distance >= m.cutoff {
			continue
		}

		matches = append(matches, matcher.Match{
			Key:        identity.Key,
			Confidence: Confidence(distance),
			Source:     domain.SourceRegistry,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	return matches, nil
}

// euclideanDistance computes the L2 distance between two embeddings of equal
// length
func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Confidence converts a distance into a percentage score:
// clamp(0, 100, round2((1 - distance) * 100)). Identical embeddings score
// 100; distances above 1 clamp to 0 instead of going negative.
func Confidence(distance float64) float64 {
	confidence := (1 - distance) * 100
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return math.Round(confidence*100) / 100
}
