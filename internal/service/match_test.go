package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fineme-ai/fineme/internal/config"
	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/feed"
	"github.com/fineme-ai/fineme/internal/matcher"
	"github.com/fineme-ai/fineme/internal/ratelimit"
)

type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) Encode(ctx context.Context, image []byte) ([]float64, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type MockMatcher struct {
	mock.Mock
}

func (m *MockMatcher) Enroll(ctx context.Context, key string, image []byte, embedding []float64) error {
	args := m.Called(ctx, key, image, embedding)
	return args.Error(0)
}

func (m *MockMatcher) Search(ctx context.Context, q matcher.Query) ([]matcher.Match, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]matcher.Match), args.Error(1)
}

type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockIdentityRepository) GetByKey(ctx context.Context, key string) (*domain.Identity, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockIdentityRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockFeedSearcher struct {
	mock.Mock
}

func (m *MockFeedSearcher) Search(ctx context.Context, query string) ([]feed.Post, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]feed.Post), args.Error(1)
}

type MockQuotaGuard struct {
	mock.Mock
}

func (m *MockQuotaGuard) Allow(ctx context.Context, scope string, limit int) error {
	args := m.Called(ctx, scope, limit)
	return args.Error(0)
}

type serviceMocks struct {
	encoder    *MockEncoder
	matcher    *MockMatcher
	identities *MockIdentityRepository
	feed       *MockFeedSearcher
	quota      *MockQuotaGuard
}

func newService(t *testing.T, opts FeedOptions) (*MatchService, *serviceMocks) {
	t.Helper()

	m := &serviceMocks{
		encoder:    new(MockEncoder),
		matcher:    new(MockMatcher),
		identities: new(MockIdentityRepository),
		feed:       new(MockFeedSearcher),
		quota:      new(MockQuotaGuard),
	}

	svc := NewMatchService(m.encoder, m.matcher, m.identities, m.feed, m.quota, opts, nil)
	return svc, m
}

var testEmbedding = []float64{0.6, 0.8}

func allowQuota(m *serviceMocks) {
	m.quota.On("Allow", mock.Anything, "feed_search", mock.Anything).Return(nil)
}

func TestMatchService_Enroll(t *testing.T) {
	ctx := context.Background()
	image := []byte("reference-photo-bytes")

	t.Run("successful enrollment derives key and persists", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{})

		m.encoder.On("Encode", mock.Anything, image).Return(testEmbedding, nil)
		m.matcher.On("Enroll", mock.Anything, "Jane_Doe", image, testEmbedding).Return(nil)
		m.identities.On("Upsert", mock.Anything, mock.MatchedBy(func(id *domain.Identity) bool {
			return id.Key == "Jane_Doe" && id.DisplayName == "Jane Doe"
		})).Return(nil)

		identity, err := svc.Enroll(ctx, "  Jane Doe  ", "jane.jpg", image)
		require.NoError(t, err)
		assert.Equal(t, "Jane_Doe", identity.Key)
		assert.Equal(t, "jane.jpg", identity.ReferenceImage)
		assert.Equal(t, testEmbedding, identity.Embedding)

		m.matcher.AssertExpectations(t)
		m.identities.AssertExpectations(t)
	})

	t.Run("empty name is a validation error", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{})

		_, err := svc.Enroll(ctx, "   ", "ref.jpg", image)

		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, domain.ErrValidationFailed.Code, appErr.Code)
		m.encoder.AssertNotCalled(t, "Encode", mock.Anything, mock.Anything)
	})

	t.Run("missing image is a validation error", func(t *testing.T) {
		svc, _ := newService(t, FeedOptions{})

		_, err := svc.Enroll(ctx, "Jane Doe", "ref.jpg", nil)

		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, domain.ErrValidationFailed.Code, appErr.Code)
	})

	t.Run("no face causes no registry mutation", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{})

		m.encoder.On("Encode", mock.Anything, image).Return(nil, domain.ErrNoFaceDetected)

		_, err := svc.Enroll(ctx, "Jane Doe", "ref.jpg", image)
		assert.ErrorIs(t, err, domain.ErrNoFaceDetected)

		m.matcher.AssertNotCalled(t, "Enroll", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.identities.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("matcher unavailable fails enrollment", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{})

		m.encoder.On("Encode", mock.Anything, image).Return(testEmbedding, nil)
		m.matcher.On("Enroll", mock.Anything, "Jane_Doe", image, testEmbedding).Return(matcher.ErrUnavailable)

		_, err := svc.Enroll(ctx, "Jane Doe", "ref.jpg", image)

		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, domain.ErrMatcherUnavailable.Code, appErr.Code)
		m.identities.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestMatchService_Match_RegistryHit(t *testing.T) {
	ctx := context.Background()
	image := []byte("found-photo")

	svc, m := newService(t, FeedOptions{Mode: config.FeedModeOff})

	m.encoder.On("Encode", mock.Anything, image).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, matcher.Query{Image: image, Embedding: testEmbedding}).
		Return([]matcher.Match{
			{Key: "jane_doe", Confidence: 100, Source: domain.SourceRegistry},
		}, nil)
	m.identities.On("GetByKey", mock.Anything, "jane_doe").Return(&domain.Identity{
		Key:            "jane_doe",
		DisplayName:    "Jane Doe",
		ReferenceImage: "jane.jpg",
	}, nil)

	result, err := svc.Match(ctx, image)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	c := result.Candidates[0]
	assert.Equal(t, "jane_doe", c.Key)
	assert.Equal(t, "Jane Doe", c.DisplayName)
	require.NotNil(t, c.Confidence)
	assert.Equal(t, 100.0, *c.Confidence)
	assert.Equal(t, domain.SourceRegistry, c.Source)
	assert.Empty(t, result.Advisories)
}

func TestMatchService_Match_NoFace(t *testing.T) {
	svc, m := newService(t, FeedOptions{})

	m.encoder.On("Encode", mock.Anything, mock.Anything).Return(nil, domain.ErrNoFaceDetected)

	_, err := svc.Match(context.Background(), []byte("landscape"))
	assert.ErrorIs(t, err, domain.ErrNoFaceDetected)
	m.matcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestMatchService_Match_MatcherUnavailableDegrades(t *testing.T) {
	ctx := context.Background()
	image := []byte("found-photo")

	svc, m := newService(t, FeedOptions{Mode: config.FeedModeAlways})

	m.encoder.On("Encode", mock.Anything, image).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return(nil, matcher.ErrUnavailable)
	allowQuota(m)
	m.feed.On("Search", mock.Anything, mock.Anything).Return([]feed.Post{
		{MediaURL: "https://img.example/a.jpg", PostedAt: time.Now()},
	}, nil)

	result, err := svc.Match(ctx, image)
	require.NoError(t, err, "matcher outage must not fail the request")

	require.Len(t, result.Advisories, 1)
	assert.Equal(t, domain.ErrMatcherUnavailable.Code, result.Advisories[0].Code)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, domain.SourceExternalFeed, result.Candidates[0].Source)
}

func TestMatchService_Match_FeedRateLimitedDegrades(t *testing.T) {
	ctx := context.Background()
	image := []byte("found-photo")

	svc, m := newService(t, FeedOptions{Mode: config.FeedModeAlways})

	m.encoder.On("Encode", mock.Anything, image).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{
		{Key: "jane_doe", Confidence: 92.5, Source: domain.SourceRegistry},
	}, nil)
	m.identities.On("GetByKey", mock.Anything, "jane_doe").Return(&domain.Identity{
		Key:         "jane_doe",
		DisplayName: "Jane Doe",
	}, nil)
	allowQuota(m)
	m.feed.On("Search", mock.Anything, mock.Anything).Return(nil, feed.ErrRateLimited)

	result, err := svc.Match(ctx, image)
	require.NoError(t, err)

	// registry candidates survive, the feed outage is an advisory
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "jane_doe", result.Candidates[0].Key)
	require.Len(t, result.Advisories, 1)
	assert.Equal(t, domain.ErrFeedRateLimited.Code, result.Advisories[0].Code)
}

func TestMatchService_Match_FeedProviderErrorDegrades(t *testing.T) {
	svc, m := newService(t, FeedOptions{Mode: config.FeedModeAlways})

	m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{}, nil)
	allowQuota(m)
	m.feed.On("Search", mock.Anything, mock.Anything).Return(nil, feed.ErrProvider)

	result, err := svc.Match(context.Background(), []byte("found-photo"))
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	require.Len(t, result.Advisories, 1)
	assert.Equal(t, domain.ErrFeedProvider.Code, result.Advisories[0].Code)
}

func TestMatchService_Match_EmptyRegistryFeedOnly(t *testing.T) {
	svc, m := newService(t, FeedOptions{Mode: config.FeedModeAlways})

	m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{}, nil)
	allowQuota(m)
	m.feed.On("Search", mock.Anything, mock.Anything).Return([]feed.Post{
		{MediaURL: "https://img.example/first.jpg"},
		{MediaURL: "https://img.example/second.jpg"},
	}, nil)

	result, err := svc.Match(context.Background(), []byte("found-photo"))
	require.NoError(t, err)

	// two unscored candidates, provider order preserved
	require.Len(t, result.Candidates, 2)
	for _, c := range result.Candidates {
		assert.Equal(t, domain.UnknownLabel, c.Key)
		assert.Nil(t, c.Confidence)
		assert.Equal(t, domain.SourceExternalFeed, c.Source)
	}
	assert.Equal(t, "https://img.example/first.jpg", result.Candidates[0].Evidence)
	assert.Equal(t, "https://img.example/second.jpg", result.Candidates[1].Evidence)
}

func TestMatchService_Match_DropsUnresolvableCandidate(t *testing.T) {
	svc, m := newService(t, FeedOptions{Mode: config.FeedModeOff})

	m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{
		{Key: "ghost", Confidence: 99, Source: domain.SourceRemoteCollection},
		{Key: "jane_doe", Confidence: 88, Source: domain.SourceRemoteCollection},
	}, nil)
	m.identities.On("GetByKey", mock.Anything, "ghost").Return(nil, domain.ErrIdentityNotFound)
	m.identities.On("GetByKey", mock.Anything, "jane_doe").Return(&domain.Identity{
		Key:         "jane_doe",
		DisplayName: "Jane Doe",
	}, nil)

	result, err := svc.Match(context.Background(), []byte("found-photo"))
	require.NoError(t, err)

	// the orphaned key never surfaces as a false match
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "jane_doe", result.Candidates[0].Key)
}

func TestMatchService_Match_FallbackMode(t *testing.T) {
	t.Run("feed skipped when registry produced candidates", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{Mode: config.FeedModeFallback})

		m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
		m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{
			{Key: "jane_doe", Confidence: 95, Source: domain.SourceRegistry},
		}, nil)
		m.identities.On("GetByKey", mock.Anything, "jane_doe").Return(&domain.Identity{
			Key:         "jane_doe",
			DisplayName: "Jane Doe",
		}, nil)

		result, err := svc.Match(context.Background(), []byte("found-photo"))
		require.NoError(t, err)
		require.Len(t, result.Candidates, 1)
		m.feed.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("feed queried when registry was empty", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{Mode: config.FeedModeFallback})

		m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
		m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{}, nil)
		allowQuota(m)
		m.feed.On("Search", mock.Anything, mock.Anything).Return([]feed.Post{
			{MediaURL: "https://img.example/a.jpg"},
		}, nil)

		result, err := svc.Match(context.Background(), []byte("found-photo"))
		require.NoError(t, err)
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, domain.SourceExternalFeed, result.Candidates[0].Source)
	})
}

func TestMatchService_MatchRegistryOnly_SkipsFeed(t *testing.T) {
	svc, m := newService(t, FeedOptions{Mode: config.FeedModeAlways})

	m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{}, nil)

	result, err := svc.MatchRegistryOnly(context.Background(), []byte("found-photo"))
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	m.feed.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	m.quota.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatchService_Match_LocalQuotaExhausted(t *testing.T) {
	svc, m := newService(t, FeedOptions{Mode: config.FeedModeAlways, QuotaLimit: 5})

	m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{}, nil)
	m.quota.On("Allow", mock.Anything, "feed_search", 5).Return(ratelimit.ErrQuotaExceeded)

	result, err := svc.Match(context.Background(), []byte("found-photo"))
	require.NoError(t, err)

	// the provider is never called once the local budget is spent
	m.feed.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	require.Len(t, result.Advisories, 1)
	assert.Equal(t, domain.ErrFeedRateLimited.Code, result.Advisories[0].Code)
}

func TestMatchService_Match_QuotaCheckFailureFailsOpen(t *testing.T) {
	svc, m := newService(t, FeedOptions{Mode: config.FeedModeAlways, QuotaLimit: 5})

	m.encoder.On("Encode", mock.Anything, mock.Anything).Return(testEmbedding, nil)
	m.matcher.On("Search", mock.Anything, mock.Anything).Return([]matcher.Match{}, nil)
	m.quota.On("Allow", mock.Anything, "feed_search", 5).Return(assert.AnError)
	m.feed.On("Search", mock.Anything, mock.Anything).Return([]feed.Post{}, nil)

	result, err := svc.Match(context.Background(), []byte("found-photo"))
	require.NoError(t, err)
	assert.Empty(t, result.Advisories)
	m.feed.AssertExpectations(t)
}

func TestRankCandidates(t *testing.T) {
	score := func(v float64) *float64 { return &v }

	t.Run("same key from two sources keeps higher confidence", func(t *testing.T) {
		ranked := rankCandidates([]domain.MatchCandidate{
			{Key: "jane_doe", Confidence: score(80), Source: domain.SourceRegistry},
			{Key: "jane_doe", Confidence: score(95), Source: domain.SourceRemoteCollection},
		})

		require.Len(t, ranked, 1)
		assert.Equal(t, 95.0, *ranked[0].Confidence)
		assert.Equal(t, domain.SourceRemoteCollection, ranked[0].Source)
	})

	t.Run("tied confidence keeps first-seen source", func(t *testing.T) {
		ranked := rankCandidates([]domain.MatchCandidate{
			{Key: "jane_doe", Confidence: score(90), Source: domain.SourceRegistry},
			{Key: "jane_doe", Confidence: score(90), Source: domain.SourceRemoteCollection},
		})

		require.Len(t, ranked, 1)
		assert.Equal(t, domain.SourceRegistry, ranked[0].Source)
	})

	t.Run("distinct feed posts all survive dedupe", func(t *testing.T) {
		ranked := rankCandidates([]domain.MatchCandidate{
			{Key: domain.UnknownLabel, Source: domain.SourceExternalFeed, Evidence: "https://a"},
			{Key: domain.UnknownLabel, Source: domain.SourceExternalFeed, Evidence: "https://b"},
		})

		assert.Len(t, ranked, 2)
	})

	t.Run("duplicate feed post collapses", func(t *testing.T) {
		ranked := rankCandidates([]domain.MatchCandidate{
			{Key: domain.UnknownLabel, Source: domain.SourceExternalFeed, Evidence: "https://a"},
			{Key: domain.UnknownLabel, Source: domain.SourceExternalFeed, Evidence: "https://a"},
		})

		assert.Len(t, ranked, 1)
	})

	t.Run("descending confidence with unscored last", func(t *testing.T) {
		ranked := rankCandidates([]domain.MatchCandidate{
			{Key: domain.UnknownLabel, Source: domain.SourceExternalFeed, Evidence: "https://a"},
			{Key: "low", Confidence: score(40), Source: domain.SourceRegistry},
			{Key: domain.UnknownLabel, Source: domain.SourceExternalFeed, Evidence: "https://b"},
			{Key: "high", Confidence: score(99), Source: domain.SourceRegistry},
		})

		require.Len(t, ranked, 4)
		assert.Equal(t, "high", ranked[0].Key)
		assert.Equal(t, "low", ranked[1].Key)
		assert.Equal(t, "https://a", ranked[2].Evidence)
		assert.Equal(t, "https://b", ranked[3].Evidence)
	})
}

func TestMatchService_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{})
		m.identities.On("Ping", mock.Anything).Return(nil)
		assert.NoError(t, svc.Health(context.Background()))
	})

	t.Run("registry down", func(t *testing.T) {
		svc, m := newService(t, FeedOptions{})
		m.identities.On("Ping", mock.Anything).Return(assert.AnError)
		assert.Error(t, svc.Health(context.Background()))
	})
}
