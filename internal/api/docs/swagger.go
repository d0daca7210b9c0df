package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// EnrollResponse represents the response for a successful enrollment
type EnrollResponse struct {
	Key            string `json:"key" example:"Jane_Doe"`
	DisplayName    string `json:"display_name" example:"Jane Doe"`
	ReferenceImage string `json:"reference_image" example:"jane.jpg"`
	CreatedAt      string `json:"created_at" example:"2024-01-01T00:00:00Z"`
	UpdatedAt      string `json:"updated_at" example:"2024-01-01T00:00:00Z"`
}

// MatchCandidateData represents one candidate in a match response
type MatchCandidateData struct {
	Key         string   `json:"key" example:"Jane_Doe"`
	DisplayName string   `json:"display_name" example:"Jane Doe"`
	Confidence  *float64 `json:"confidence,omitempty" example:"98.75"`
	Source      string   `json:"source" example:"registry"`
	Evidence    string   `json:"evidence" example:"jane.jpg"`
}

// AdvisoryData represents a non-fatal degradation note
type AdvisoryData struct {
	Code    string `json:"code" example:"FEED_RATE_LIMITED"`
	Message string `json:"message" example:"External feed quota exceeded, showing registry matches only"`
}

// MatchResponse represents the response for a match search
type MatchResponse struct {
	SearchID   string               `json:"search_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Candidates []MatchCandidateData `json:"candidates"`
	Advisories []AdvisoryData       `json:"advisories,omitempty"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"0.1.0"`
}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "FineMe Face Matching API",
		Version:     "v1.0.0",
		Description: "Face-identity matching and cross-source aggregation for missing-person photo searches",
		Host:        "localhost:3000",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/identities - Enroll a missing person
		endpoint.New(
			endpoint.POST,
			"/v1/identities",
			endpoint.WithTags("Identities"),
			endpoint.WithSummary("Enroll a missing person"),
			endpoint.WithDescription("Registers a reference photo under a key derived from the display name. Re-enrolling the same name replaces the stored embedding and reference image."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollResponse{}, "201", "Identity enrolled successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "MATCHER_UNAVAILABLE", Message: "Face matching backend is unreachable"}, "503", "Service Unavailable"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// POST /v1/matches - Match a found photo
		endpoint.New(
			endpoint.POST,
			"/v1/matches",
			endpoint.WithTags("Matches"),
			endpoint.WithSummary("Search a found photo across all sources"),
			endpoint.WithDescription("Encodes the photo, searches the configured matcher, resolves identities and optionally merges external feed posts. Degradations of optional sources surface as advisories, not errors."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("registry_only", parameter.Form, parameter.WithDescription("Set to true to skip the external feed merge")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchResponse{}, "200", "Search completed successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "ENCODER_UNAVAILABLE", Message: "Face encoding backend is unreachable"}, "503", "Service Unavailable"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /health - Liveness probe
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is alive"),
			}),
		),

		// GET /ready - Readiness probe
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Reports 503 until the identity registry answers a ping"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "unavailable"}, "503", "Registry unreachable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
