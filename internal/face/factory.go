package face

import (
	"context"
	"fmt"

	"github.com/fineme-ai/fineme/internal/config"
	"github.com/fineme-ai/fineme/internal/matcher"
	"github.com/fineme-ai/fineme/internal/matcher/local"
	"github.com/fineme-ai/fineme/internal/matcher/rekognition"
)

// StrategyType defines supported matcher strategies
type StrategyType string

const (
	// StrategyTypeLocal scans the registry embeddings in-process
	StrategyTypeLocal StrategyType = "local"
	// StrategyTypeRekognition delegates to an AWS Rekognition collection
	StrategyTypeRekognition StrategyType = "rekognition"
)

// NewMatcher creates the matcher strategy selected by configuration. The
// local strategy scans the registry's embeddings; the remote strategy
// bootstraps the Rekognition collection before first use.
//
// Environment variables:
//   - MATCHER: "local" or "rekognition" (default: "local")
//   - LOCAL_DISTANCE_CUTOFF: local strategy acceptance cutoff
//   - AWS_REGION, REKOGNITION_COLLECTION: remote strategy settings
//   - REMOTE_MAX_FACES, REMOTE_MATCH_THRESHOLD: remote search bounds
func NewMatcher(ctx context.Context, cfg *config.Config, identities local.IdentityLister) (matcher.Matcher, error) {
	strategy := StrategyType(cfg.Matcher)

	switch strategy {
	case StrategyTypeRekognition:
		return createRekognitionMatcher(ctx, cfg)

	case StrategyTypeLocal, "":
		// Default to the local scan for dev/test environments
		return local.New(identities, cfg.LocalCutoff), nil

	default:
		return nil, fmt.Errorf("unknown matcher strategy: %s (supported: %s, %s)",
			cfg.Matcher, StrategyTypeLocal, StrategyTypeRekognition)
	}
}

func createRekognitionMatcher(ctx context.Context, cfg *config.Config) (matcher.Matcher, error) {
	rekogConfig := rekognition.Config{
		Region:       cfg.AWSRegion,
		CollectionID: cfg.CollectionID,
		MaxFaces:     cfg.RemoteMaxFaces,
		Threshold:    cfg.RemoteThreshold,
	}

	m, err := rekognition.NewMatcher(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition matcher for collection %s: %w", cfg.CollectionID, err)
	}

	return m, nil
}
