package embedding

import "errors"

// Sentinel errors for embedding validation.
var (
	ErrEmpty    = errors.New("embedding is empty")
	ErrZeroNorm = errors.New("embedding has zero norm")
)
