package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/smithy-go"
)

const (
	errCodeAccessDenied       = "AccessDeniedException"
	errCodeResourceNotFound   = "ResourceNotFoundException"
	errCodeResourceExists     = "ResourceAlreadyExistsException"
	errCodeInvalidParameter   = "InvalidParameterException"
	errCodeThrottling         = "ThrottlingException"
	errCodeServiceUnavailable = "ServiceUnavailableException"
)

// RekognitionAPI is the subset of the AWS Rekognition client this package
// uses; it exists so tests can substitute a mock
type RekognitionAPI interface {
	CreateCollection(ctx context.Context, params *rekognition.CreateCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error)
	DescribeCollection(ctx context.Context, params *rekognition.DescribeCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.DescribeCollectionOutput, error)
	IndexFaces(ctx context.Context, params *rekognition.IndexFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
	SearchFacesByImage(ctx context.Context, params *rekognition.SearchFacesByImageInput, optFns ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error)
}

// Client wraps the AWS Rekognition client and manages the face collection
type Client struct {
	rekognition RekognitionAPI
	config      Config
}

// NewClient creates a new Rekognition client with the provided configuration.
// It uses the AWS default credential chain to authenticate.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		rekognition: rekognition.NewFromConfig(awsCfg),
		config:      cfg,
	}, nil
}

// NewClientWithAPI creates a client backed by a custom API implementation
func NewClientWithAPI(api RekognitionAPI, cfg Config) *Client {
	return &Client{
		rekognition: api,
		config:      cfg,
	}
}

// CreateCollection creates the configured collection.
// Returns ErrCollectionAlreadyExists if it already exists.
func (c *Client) CreateCollection(ctx context.Context) error {
	input := &rekognition.CreateCollectionInput{
		CollectionId: aws.String(c.config.CollectionID),
	}

	_, err := c.rekognition.CreateCollection(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case errCodeResourceExists:
				return fmt.Errorf("collection %s: %w", c.config.CollectionID, ErrCollectionAlreadyExists)
			case errCodeInvalidParameter:
				return fmt.Errorf("collection %s: invalid collection parameters: %w", c.config.CollectionID, err)
			case errCodeAccessDenied:
				return fmt.Errorf("collection %s: %w", c.config.CollectionID, ErrInvalidCredentials)
			}
		}
		return fmt.Errorf("failed to create collection %s: %w", c.config.CollectionID, err)
	}

	return nil
}

// CollectionExists checks whether the configured collection exists
func (c *Client) CollectionExists(ctx context.Context) (bool, error) {
	input := &rekognition.DescribeCollectionInput{
		CollectionId: aws.String(c.config.CollectionID),
	}

	_, err := c.rekognition.DescribeCollection(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case errCodeResourceNotFound:
				return false, nil
			case errCodeAccessDenied:
				return false, fmt.Errorf("collection %s: %w", c.config.CollectionID, ErrInvalidCredentials)
			}
		}
		return false, fmt.Errorf("failed to check collection %s: %w", c.config.CollectionID, err)
	}

	return true, nil
}

// EnsureCollection creates the collection if it doesn't exist, or does
// nothing if it already exists. Safe against the benign race where another
// process creates it between the check and the create.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.CollectionExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		return nil
	}

	if err := c.CreateCollection(ctx); err != nil {
		// Ignore if collection was created concurrently
		if errors.Is(err, ErrCollectionAlreadyExists) {
			return nil
		}
		return err
	}

	return nil
}

// isUnavailable reports whether an AWS error means the service cannot be
// reached or used right now, as opposed to a problem with the request itself
func isUnavailable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeAccessDenied, errCodeResourceNotFound, errCodeThrottling, errCodeServiceUnavailable:
			return true
		}
		return false
	}
	// non-API errors are transport failures (DNS, timeout, connection reset)
	return true
}

// parseNoFaceError checks if an AWS error indicates no face was detected in
// the submitted image
func parseNoFaceError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == errCodeInvalidParameter {
			if msg := apiErr.ErrorMessage(); msg != "" {
				return fmt.Errorf("%w: %s", ErrNoFaceDetected, msg)
			}
			return ErrNoFaceDetected
		}
	}

	return nil
}
