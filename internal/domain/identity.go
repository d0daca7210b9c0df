package domain

import (
	"regexp"
	"strings"
	"time"
)

// Source identifies where a match candidate came from
type Source string

const (
	// SourceRegistry marks candidates scored by the local registry scan
	SourceRegistry Source = "registry"
	// SourceRemoteCollection marks candidates scored by the remote face collection
	SourceRemoteCollection Source = "remote_collection"
	// SourceExternalFeed marks unscored candidates pulled from the external feed
	SourceExternalFeed Source = "external_feed"
)

// UnknownLabel is the label assigned to external feed candidates, which carry
// no resolved identity
const UnknownLabel = "unknown"

// Identity represents one enrolled missing person
type Identity struct {
	Key            string    `json:"key"`
	DisplayName    string    `json:"display_name"`
	ReferenceImage string    `json:"reference_image"`
	Embedding      []float64 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MatchCandidate is a single proposed match returned to the caller.
// Confidence is nil for sources that provide no numeric score.
type MatchCandidate struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Source      Source   `json:"source"`
	Evidence    string   `json:"evidence"`
}

var keyInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-:]`)

// DeriveKey converts a display name into a stable registry key, safe for use
// as a remote collection ExternalImageId. Returns "" for names that reduce to
// nothing, which callers must reject as a validation error.
func DeriveKey(displayName string) string {
	return keyInvalidChars.ReplaceAllString(strings.TrimSpace(displayName), "_")
}
