package feed

import "errors"

var (
	// ErrRateLimited indicates the provider's request quota is exhausted.
	// Callers degrade to registry-only results instead of failing the request.
	ErrRateLimited = errors.New("feed provider rate limit exceeded")

	// ErrProvider indicates any other provider failure; also non-fatal to the
	// overall match request
	ErrProvider = errors.New("feed provider error")
)
