package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fineme-ai/fineme/internal/api"
	"github.com/fineme-ai/fineme/internal/config"
	"github.com/fineme-ai/fineme/internal/database"
	"github.com/fineme-ai/fineme/internal/encoder"
	"github.com/fineme-ai/fineme/internal/encoder/deepface"
	encodermock "github.com/fineme-ai/fineme/internal/encoder/mock"
	"github.com/fineme-ai/fineme/internal/face"
	"github.com/fineme-ai/fineme/internal/feed"
	"github.com/fineme-ai/fineme/internal/ratelimit"
	"github.com/fineme-ai/fineme/internal/registry"
	"github.com/fineme-ai/fineme/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting FineMe API",
		slog.String("environment", cfg.Environment),
		slog.String("matcher", cfg.Matcher),
		slog.String("feed_mode", cfg.FeedMode),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database pool
	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	identityRepo := registry.NewIdentityRepository(pool)

	// Matcher strategy (local scan or remote collection)
	matchStrategy, err := face.NewMatcher(ctx, cfg, identityRepo)
	if err != nil {
		return fmt.Errorf("failed to create matcher: %w", err)
	}

	// Encoder backend
	var faceEncoder encoder.Encoder
	if cfg.Encoder == "mock" {
		faceEncoder = encodermock.New()
	} else {
		encoderConfig := deepface.DefaultConfig()
		encoderConfig.BaseURL = cfg.EncoderURL
		encoderConfig.Timeout = cfg.EncoderTimeout
		faceEncoder = deepface.NewEncoder(encoderConfig)
	}

	// External feed client with local quota guard
	feedConfig := feed.DefaultConfig()
	feedConfig.BaseURL = cfg.FeedBaseURL
	feedConfig.BearerToken = cfg.FeedBearerToken
	feedConfig.PageSize = cfg.FeedPageSize
	feedConfig.Timeout = cfg.UpstreamTimeout
	feedClient := feed.NewClient(feedConfig)

	quotaGuard := ratelimit.NewQuotaGuard(pool, cfg.FeedQuotaWindow)

	matchService := service.NewMatchService(
		faceEncoder,
		matchStrategy,
		identityRepo,
		feedClient,
		quotaGuard,
		service.FeedOptions{
			Mode:       cfg.FeedMode,
			Query:      cfg.FeedQuery,
			QuotaLimit: cfg.FeedQuotaLimit,
		},
		logger,
	)

	router := api.NewRouter(logger, &api.Dependencies{
		MatchService:  matchService,
		HealthChecker: matchService,
	})
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}
