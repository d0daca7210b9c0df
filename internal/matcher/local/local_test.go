package local

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/matcher"
)

type stubRegistry struct {
	identities []domain.Identity
	err        error
}

func (s *stubRegistry) All(ctx context.Context) ([]domain.Identity, error) {
	return s.identities, s.err
}

func identity(key string, embedding []float64) domain.Identity {
	return domain.Identity{
		Key:            key,
		DisplayName:    key,
		ReferenceImage: "database/" + key + ".jpg",
		Embedding:      embedding,
	}
}

func TestMatcher_Search_ExactMatchScoresHundred(t *testing.T) {
	e := []float64{0.5, 0.5, 0.5, 0.5}
	m := New(&stubRegistry{identities: []domain.Identity{identity("jane_doe", e)}}, DefaultCutoff)

	matches, err := m.Search(context.Background(), matcher.Query{Embedding: e})
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "jane_doe", matches[0].Key)
	assert.Equal(t, 100.0, matches[0].Confidence)
	assert.Equal(t, domain.SourceRegistry, matches[0].Source)
}

func TestMatcher_Search_CutoffExcludesEntirely(t *testing.T) {
	// distance between orthogonal unit vectors is sqrt(2) ~ 1.414
	m := New(&stubRegistry{identities: []domain.Identity{
		identity("far_away", []float64{1, 0}),
	}}, DefaultCutoff)

	matches, err := m.Search(context.Background(), matcher.Query{Embedding: []float64{0, 1}})
	require.NoError(t, err)
	assert.Empty(t, matches, "closest candidate beyond cutoff must still be excluded")
}

func TestMatcher_Search_DistanceExactlyAtCutoffExcluded(t *testing.T) {
	// distance to the query is exactly 0.6
	m := New(&stubRegistry{identities: []domain.Identity{
		identity("edge", []float64{0.6, 1}),
	}}, DefaultCutoff)

	matches, err := m.Search(context.Background(), matcher.Query{Embedding: []float64{0, 1}})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatcher_Search_RankedByDescendingConfidence(t *testing.T) {
	query := []float64{0, 1}
	m := New(&stubRegistry{identities: []domain.Identity{
		identity("mid", []float64{0.3, 1}),
		identity("best", []float64{0.1, 1}),
		identity("worst", []float64{0.5, 1}),
	}}, DefaultCutoff)

	matches, err := m.Search(context.Background(), matcher.Query{Embedding: query})
	require.NoError(t, err)

	require.Len(t, matches, 3)
	assert.Equal(t, "best", matches[0].Key)
	assert.Equal(t, "mid", matches[1].Key)
	assert.Equal(t, "worst", matches[2].Key)

	// confidence decreases monotonically with distance
	assert.Greater(t, matches[0].Confidence, matches[1].Confidence)
	assert.Greater(t, matches[1].Confidence, matches[2].Confidence)
}

func TestMatcher_Search_Deterministic(t *testing.T) {
	query := []float64{0, 1}
	m := New(&stubRegistry{identities: []domain.Identity{
		identity("a", []float64{0.2, 1}),
		identity("b", []float64{0.4, 1}),
	}}, DefaultCutoff)

	first, err := m.Search(context.Background(), matcher.Query{Embedding: query})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := m.Search(context.Background(), matcher.Query{Embedding: query})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatcher_Search_SkipsRemoteOnlyIdentities(t *testing.T) {
	e := []float64{0, 1}
	m := New(&stubRegistry{identities: []domain.Identity{
		identity("remote_only", nil),
		identity("local", e),
	}}, DefaultCutoff)

	matches, err := m.Search(context.Background(), matcher.Query{Embedding: e})
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "local", matches[0].Key)
}

func TestMatcher_Search_RegistryDownIsUnavailable(t *testing.T) {
	m := New(&stubRegistry{err: errors.New("connection refused")}, DefaultCutoff)

	_, err := m.Search(context.Background(), matcher.Query{Embedding: []float64{0, 1}})
	assert.ErrorIs(t, err, matcher.ErrUnavailable)
}

func TestMatcher_Enroll(t *testing.T) {
	m := New(&stubRegistry{}, DefaultCutoff)

	assert.NoError(t, m.Enroll(context.Background(), "jane_doe", []byte("img"), []float64{0, 1}))
	assert.Error(t, m.Enroll(context.Background(), "jane_doe", []byte("img"), nil))
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{name: "identical", distance: 0, want: 100},
		{name: "mid range", distance: 0.4, want: 60},
		{name: "rounded to two decimals", distance: 0.123451, want: 87.65},
		{name: "distance of one", distance: 1, want: 0},
		{name: "beyond one clamps to zero", distance: 1.8, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.distance))
		})
	}
}

func TestConfidence_MonotonicallyDecreasing(t *testing.T) {
	prev := Confidence(0)
	for d := 0.05; d <= 2.0; d += 0.05 {
		cur := Confidence(d)
		assert.LessOrEqual(t, cur, prev, "distance %f", d)
		assert.GreaterOrEqual(t, cur, 0.0)
		assert.LessOrEqual(t, cur, 100.0)
		prev = cur
	}
}
