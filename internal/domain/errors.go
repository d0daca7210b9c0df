package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrIdentityNotFound = &AppError{
		Code:       "IDENTITY_NOT_FOUND",
		Message:    "Identity not found",
		StatusCode: 404,
	}

	ErrMatcherUnavailable = &AppError{
		Code:       "MATCHER_UNAVAILABLE",
		Message:    "Face matching backend is unreachable",
		StatusCode: 503,
	}

	ErrEncoderUnavailable = &AppError{
		Code:       "ENCODER_UNAVAILABLE",
		Message:    "Face encoding backend is unreachable",
		StatusCode: 503,
	}

	ErrFeedRateLimited = &AppError{
		Code:       "FEED_RATE_LIMITED",
		Message:    "External feed quota exceeded, showing registry matches only",
		StatusCode: 429,
	}

	ErrFeedProvider = &AppError{
		Code:       "FEED_PROVIDER_ERROR",
		Message:    "External feed provider returned an error",
		StatusCode: 502,
	}
)
