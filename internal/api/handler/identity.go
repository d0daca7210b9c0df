package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fineme-ai/fineme/internal/domain"
	"github.com/fineme-ai/fineme/internal/service"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// MatchService interface for the service
type MatchService interface {
	Enroll(ctx context.Context, displayName, referenceImage string, image []byte) (*domain.Identity, error)
	Match(ctx context.Context, image []byte) (*service.MatchResult, error)
	MatchRegistryOnly(ctx context.Context, image []byte) (*service.MatchResult, error)
}

// IdentityHandler handles enroll and match requests
type IdentityHandler struct {
	service MatchService
	logger  *slog.Logger
}

// NewIdentityHandler creates a new IdentityHandler instance
func NewIdentityHandler(service MatchService, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{
		service: service,
		logger:  logger,
	}
}

// EnrollResponse response for the enroll endpoint
type EnrollResponse struct {
	Key            string `json:"key"`
	DisplayName    string `json:"display_name"`
	ReferenceImage string `json:"reference_image,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// MatchResponse response for the match endpoint
type MatchResponse struct {
	SearchID   string                  `json:"search_id"`
	Candidates []domain.MatchCandidate `json:"candidates"`
	Advisories []service.Advisory      `json:"advisories,omitempty"`
}

// Enroll POST /v1/identities - enroll a missing person
func (h *IdentityHandler) Enroll(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return domain.ErrValidationFailed.WithError(errors.New("name is required"))
	}

	imageBytes, filename, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("enroll identity: %w", err)
	}

	identity, err := h.service.Enroll(c.Context(), name, filename, imageBytes)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(EnrollResponse{
		Key:            identity.Key,
		DisplayName:    identity.DisplayName,
		ReferenceImage: identity.ReferenceImage,
		CreatedAt:      identity.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:      identity.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Match POST /v1/matches - search a found photo across all sources
func (h *IdentityHandler) Match(c *fiber.Ctx) error {
	imageBytes, _, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("match identity: %w", err)
	}

	registryOnly := strings.EqualFold(c.FormValue("registry_only"), "true")

	var result *service.MatchResult
	if registryOnly {
		result, err = h.service.MatchRegistryOnly(c.Context(), imageBytes)
	} else {
		result, err = h.service.Match(c.Context(), imageBytes)
	}
	if err != nil {
		return err
	}

	return c.JSON(MatchResponse{
		SearchID:   result.SearchID.String(),
		Candidates: result.Candidates,
		Advisories: result.Advisories,
	})
}

// extractAndValidateImage pulls the "image" multipart file and enforces the
// size and content-type bounds before reading it into memory
func extractAndValidateImage(c *fiber.Ctx) ([]byte, string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, "", domain.ErrValidationFailed.WithError(err)
	}

	if file.Size > maxImageSize {
		return nil, "", domain.ErrInvalidImage.WithError(nil)
	}

	if file.Size == 0 {
		return nil, "", domain.ErrInvalidImage.WithError(nil)
	}

	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, "", domain.ErrInvalidImage.WithError(nil)
	}

	f, err := file.Open()
	if err != nil {
		return nil, "", domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, "", domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, file.Filename, nil
}
