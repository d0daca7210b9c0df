package matcher

import (
	"context"
	"errors"

	"github.com/fineme-ai/fineme/internal/domain"
)

// ErrUnavailable indicates the matching backend (registry store or remote
// collection) could not be reached. Strategies return it instead of an empty
// match list so callers can tell "no matches" apart from "could not search".
var ErrUnavailable = errors.New("matcher backend unavailable")

// Query carries both representations of the probe image. The local strategy
// compares the embedding; the remote strategy submits the raw bytes.
type Query struct {
	Image     []byte
	Embedding []float64
}

// Match is one scored candidate produced by a strategy. Confidence is always
// in [0, 100].
type Match struct {
	Key        string
	Confidence float64
	Source     domain.Source
}

// Matcher is the single polymorphic matching capability. The strategy (local
// exhaustive scan vs. remote collection) is chosen once at startup; callers
// never branch on it.
type Matcher interface {
	// Enroll registers the identity's face under its key so later searches
	// can return it
	Enroll(ctx context.Context, key string, image []byte, embedding []float64) error

	// Search returns ranked candidates above the strategy's acceptance
	// threshold, best first
	Search(ctx context.Context, q Query) ([]Match, error)
}
