package deepface

import "errors"

var (
	ErrDeepFaceTimeout    = errors.New("deepface request timeout")
	ErrInvalidResponse    = errors.New("invalid response from deepface")
	ErrInvalidImageFormat = errors.New("invalid image format for deepface")
)
