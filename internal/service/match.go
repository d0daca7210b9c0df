package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fineme-ai/fineme/internal/config"
	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/encoder"
	"github.com/fineme-ai/fineme/internal/feed"
	"github.com/fineme-ai/fineme/internal/matcher"
	"github.com/fineme-ai/fineme/internal/ratelimit"
)

// feedQuotaScope is the counter key for outbound feed-provider calls
const feedQuotaScope = "feed_search"

type IdentityRepositoryInterface interface {
	Upsert(ctx context.Context, identity *domain.Identity) error
	GetByKey(ctx context.Context, key string) (*domain.Identity, error)
	Ping(ctx context.Context) error
}

type FeedSearcherInterface interface {
	Search(ctx context.Context, query string) ([]feed.Post, error)
}

type QuotaGuardInterface interface {
	Allow(ctx context.Context, scope string, limit int) error
}

// Advisory is a non-fatal degradation note attached to an otherwise
// successful match result
type Advisory struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MatchResult is the aggregated outcome of one found-photo search
type MatchResult struct {
	SearchID   uuid.UUID               `json:"search_id"`
	Candidates []domain.MatchCandidate `json:"candidates"`
	Advisories []Advisory              `json:"advisories,omitempty"`
}

// FeedOptions controls whether and how the external feed is merged into a
// match result
type FeedOptions struct {
	Mode       string
	Query      string
	QuotaLimit int
}

// MatchService aggregates the encoder, the configured matcher strategy, the
// identity registry and the external feed into the enroll and match
// operations
type MatchService struct {
	encoder    encoder.Encoder
	matcher    matcher.Matcher
	identities IdentityRepositoryInterface
	feed       FeedSearcherInterface
	quota      QuotaGuardInterface
	feedOpts   FeedOptions
	logger     *slog.Logger
}

func NewMatchService(
	enc encoder.Encoder,
	m matcher.Matcher,
	identities IdentityRepositoryInterface,
	feedSearcher FeedSearcherInterface,
	quota QuotaGuardInterface,
	feedOpts FeedOptions,
	logger *slog.Logger,
) *MatchService {
	if feedOpts.Mode == "" {
		feedOpts.Mode = config.FeedModeAlways
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{
		encoder:    enc,
		matcher:    m,
		identities: identities,
		feed:       feedSearcher,
		quota:      quota,
		feedOpts:   feedOpts,
		logger:     logger,
	}
}

// Enroll registers a missing person: derives the stable key from the display
// name, encodes the reference photo, indexes it in the matcher and persists
// the identity. Matcher failures fail the enrollment rather than silently
// skipping indexing.
func (s *MatchService) Enroll(ctx context.Context, displayName, referenceImage string, image []byte) (*domain.Identity, error) {
	key := domain.DeriveKey(displayName)
	if key == "" {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("name is required"))
	}
	if len(image) == 0 {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("image is required"))
	}

	embedding, err := s.encoder.Encode(ctx, image)
	if err != nil {
		return nil, s.mapEncodeError(err)
	}

	if err := s.matcher.Enroll(ctx, key, image, embedding); err != nil {
		if errors.Is(err, matcher.ErrUnavailable) {
			return nil, domain.ErrMatcherUnavailable.WithError(err)
		}
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, domain.ErrInternal.WithError(fmt.Errorf("enroll %q: %w", key, err))
	}

	identity := &domain.Identity{
		Key:            key,
		DisplayName:    strings.TrimSpace(displayName),
		ReferenceImage: referenceImage,
		Embedding:      embedding,
	}

	if err := s.identities.Upsert(ctx, identity); err != nil {
		return nil, domain.ErrInternal.WithError(err)
	}

	return identity, nil
}

// Match runs the full found-photo pipeline: encode, search the matcher,
// resolve identities, optionally merge the external feed, dedupe and rank.
// Failures of the optional feed path never fail the request; they surface as
// advisories on the result.
func (s *MatchService) Match(ctx context.Context, image []byte) (*MatchResult, error) {
	return s.match(ctx, image, false)
}

// MatchRegistryOnly runs the same pipeline without the feed merge
func (s *MatchService) MatchRegistryOnly(ctx context.Context, image []byte) (*MatchResult, error) {
	return s.match(ctx, image, true)
}

func (s *MatchService) match(ctx context.Context, image []byte, registryOnly bool) (*MatchResult, error) {
	if len(image) == 0 {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("image is required"))
	}

	result := &MatchResult{
		SearchID:   uuid.New(),
		Candidates: []domain.MatchCandidate{},
	}
	log := s.logger.With("search_id", result.SearchID)

	embedding, err := s.encoder.Encode(ctx, image)
	if err != nil {
		return nil, s.mapEncodeError(err)
	}

	matches, err := s.matcher.Search(ctx, matcher.Query{Image: image, Embedding: embedding})
	switch {
	case err == nil:
	case errors.Is(err, matcher.ErrUnavailable):
		// Degrade to feed-only results instead of failing the request
		log.Warn("matcher unavailable, continuing without scored candidates", "error", err)
		result.Advisories = append(result.Advisories, Advisory{
			Code:    domain.ErrMatcherUnavailable.Code,
			Message: domain.ErrMatcherUnavailable.Message,
		})
		matches = nil
	case errors.Is(err, domain.ErrNoFaceDetected):
		return nil, domain.ErrNoFaceDetected
	default:
		return nil, domain.ErrInternal.WithError(fmt.Errorf("matcher search: %w", err))
	}

	for _, m := range matches {
		candidate, ok := s.resolveCandidate(ctx, log, m)
		if !ok {
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	if s.shouldQueryFeed(registryOnly, len(result.Candidates)) {
		posts, advisory := s.searchFeed(ctx, log)
		if advisory != nil {
			result.Advisories = append(result.Advisories, *advisory)
		}
		for _, post := range posts {
			result.Candidates = append(result.Candidates, domain.MatchCandidate{
				Key:      domain.UnknownLabel,
				Source:   domain.SourceExternalFeed,
				Evidence: post.MediaURL,
			})
		}
	}

	result.Candidates = rankCandidates(result.Candidates)

	return result, nil
}

// resolveCandidate attaches the stored identity's display metadata to a
// scored match. A key the registry cannot resolve is a data inconsistency:
// the candidate is dropped with a warning, never surfaced as a false match.
func (s *MatchService) resolveCandidate(ctx context.Context, log *slog.Logger, m matcher.Match) (domain.MatchCandidate, bool) {
	identity, err := s.identities.GetByKey(ctx, m.Key)
	if err != nil {
		log.Warn("dropping candidate with unresolvable identity",
			"key", m.Key,
			"source", string(m.Source),
			"error", err,
		)
		return domain.MatchCandidate{}, false
	}

	confidence := m.Confidence
	return domain.MatchCandidate{
		Key:         m.Key,
		DisplayName: identity.DisplayName,
		Confidence:  &confidence,
		Source:      m.Source,
		Evidence:    identity.ReferenceImage,
	}, true
}

func (s *MatchService) shouldQueryFeed(registryOnly bool, scoredCount int) bool {
	if registryOnly || s.feed == nil {
		return false
	}
	switch s.feedOpts.Mode {
	case config.FeedModeOff:
		return false
	case config.FeedModeFallback:
		return scoredCount == 0
	default:
		return true
	}
}

// searchFeed queries the external feed under the local quota guard. Every
// failure here is non-fatal: the caller gets an advisory and no posts.
func (s *MatchService) searchFeed(ctx context.Context, log *slog.Logger) ([]feed.Post, *Advisory) {
	if s.quota != nil {
		if err := s.quota.Allow(ctx, feedQuotaScope, s.feedOpts.QuotaLimit); err != nil {
			if errors.Is(err, ratelimit.ErrQuotaExceeded) {
				log.Warn("local feed quota exhausted, skipping feed search", "error", err)
				return nil, &Advisory{
					Code:    domain.ErrFeedRateLimited.Code,
					Message: domain.ErrFeedRateLimited.Message,
				}
			}
			// A broken counter must not block the search
			log.Warn("feed quota check failed, proceeding without it", "error", err)
		}
	}

	posts, err := s.feed.Search(ctx, s.feedOpts.Query)
	switch {
	case err == nil:
		return posts, nil
	case errors.Is(err, feed.ErrRateLimited):
		log.Warn("feed provider rate limited", "error", err)
		return nil, &Advisory{
			Code:    domain.ErrFeedRateLimited.Code,
			Message: domain.ErrFeedRateLimited.Message,
		}
	default:
		log.Warn("feed provider error", "error", err)
		return nil, &Advisory{
			Code:    domain.ErrFeedProvider.Code,
			Message: domain.ErrFeedProvider.Message,
		}
	}
}

// Health reports whether the registry is reachable
func (s *MatchService) Health(ctx context.Context) error {
	if err := s.identities.Ping(ctx); err != nil {
		return domain.ErrMatcherUnavailable.WithError(fmt.Errorf("registry ping: %w", err))
	}
	return nil
}

func (s *MatchService) mapEncodeError(err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, encoder.ErrBackendUnavailable) {
		return domain.ErrEncoderUnavailable.WithError(err)
	}
	return domain.ErrInvalidImage.WithError(err)
}

// rankCandidates dedupes and orders the merged candidate list. Scored
// candidates collapse on their identity key, keeping the higher confidence;
// feed candidates carry no identity and dedupe on their media URL instead, so
// distinct posts all survive. Order is descending confidence with unscored
// entries last, preserving provider order among them.
func rankCandidates(candidates []domain.MatchCandidate) []domain.MatchCandidate {
	deduped := make([]domain.MatchCandidate, 0, len(candidates))
	index := make(map[string]int, len(candidates))

	for _, c := range candidates {
		key := c.Key
		if c.Source == domain.SourceExternalFeed {
			key = "feed:" + c.Evidence
		}

		at, seen := index[key]
		if !seen {
			index[key] = len(deduped)
			deduped = append(deduped, c)
			continue
		}
		if confidenceLess(deduped[at].Confidence, c.Confidence) {
			// First-seen source wins the provenance tag only when the
			// scores tie; a strictly better score replaces the entry
			deduped[at] = c
		}
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return confidenceLess(deduped[j].Confidence, deduped[i].Confidence)
	})

	return deduped
}

// confidenceLess orders nil (unscored) below any numeric confidence
func confidenceLess(a, b *float64) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return *a < *b
}
