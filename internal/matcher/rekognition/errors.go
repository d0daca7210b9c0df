package rekognition

import (
	"errors"

	"github.com/fineme-ai/fineme/internal/domain"
)

var (
	// ErrCollectionNotFound indicates that the configured collection does not exist
	ErrCollectionNotFound = errors.New("rekognition collection not found")

	// ErrCollectionAlreadyExists indicates that a collection with the same name already exists
	ErrCollectionAlreadyExists = errors.New("rekognition collection already exists")

	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrNoFaceDetected indicates that no face was found in the provided image.
	// Aliased so callers matching the domain outcome catch it too.
	ErrNoFaceDetected error = domain.ErrNoFaceDetected

	// ErrInvalidImage indicates the image bytes cannot be processed
	ErrInvalidImage = errors.New("invalid image for rekognition")
)
