package rekognition

// Config holds configuration for the AWS Rekognition matching strategy
type Config struct {
	// Region is the AWS region where the Rekognition service is used (e.g., "us-east-1")
	Region string

	// CollectionID is the name of the face collection holding enrolled identities
	CollectionID string

	// MaxFaces bounds the number of matches returned by a search
	MaxFaces int

	// Threshold is the minimum similarity (0-100) for a search hit
	Threshold float64
}

// DefaultConfig returns a Config with the reference values
func DefaultConfig() Config {
	return Config{
		Region:       "us-east-1",
		CollectionID: "fineme-missing",
		MaxFaces:     5,
		Threshold:    80,
	}
}
