package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Feed merge policies for found-photo searches
const (
	FeedModeAlways   = "always"   // always query the feed and merge
	FeedModeFallback = "fallback" // query the feed only when the registry returned nothing
	FeedModeOff      = "off"      // never query the feed
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Matcher strategy: "local" or "rekognition"
	Matcher         string  `envconfig:"MATCHER" default:"local"`
	LocalCutoff     float64 `envconfig:"LOCAL_DISTANCE_CUTOFF" default:"0.6"`
	RemoteThreshold float64 `envconfig:"REMOTE_MATCH_THRESHOLD" default:"80"`
	RemoteMaxFaces  int     `envconfig:"REMOTE_MAX_FACES" default:"5"`

	// AWS Rekognition (remote strategy only)
	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`
	CollectionID string `envconfig:"REKOGNITION_COLLECTION" default:"fineme-missing"`

	// Encoder backend: "deepface" or "mock"
	Encoder        string        `envconfig:"ENCODER" default:"deepface"`
	EncoderURL     string        `envconfig:"ENCODER_URL" default:"http://localhost:5005"`
	EncoderTimeout time.Duration `envconfig:"ENCODER_TIMEOUT" default:"30s"`

	// External feed search
	FeedMode        string        `envconfig:"FEED_MODE" default:"always"`
	FeedBaseURL     string        `envconfig:"FEED_BASE_URL" default:"https://api.twitter.com"`
	FeedBearerToken string        `envconfig:"FEED_BEARER_TOKEN"`
	FeedQuery       string        `envconfig:"FEED_QUERY" default:"missing person OR lost person OR found child -is:retweet"`
	FeedPageSize    int           `envconfig:"FEED_PAGE_SIZE" default:"10"`
	FeedQuotaLimit  int           `envconfig:"FEED_QUOTA_LIMIT" default:"0"`
	FeedQuotaWindow time.Duration `envconfig:"FEED_QUOTA_WINDOW" default:"15m"`

	// Outbound call budget for remote matcher and feed requests
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	switch cfg.Matcher {
	case "local", "rekognition":
	default:
		return nil, fmt.Errorf("load config: unknown MATCHER %q", cfg.Matcher)
	}

	switch cfg.Encoder {
	case "deepface", "mock":
	default:
		return nil, fmt.Errorf("load config: unknown ENCODER %q", cfg.Encoder)
	}

	switch cfg.FeedMode {
	case FeedModeAlways, FeedModeFallback, FeedModeOff:
	default:
		return nil, fmt.Errorf("load config: unknown FEED_MODE %q", cfg.FeedMode)
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
