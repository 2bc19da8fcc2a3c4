package scenegen

import "errors"

// Sentinel errors for scene generation.
var (
	ErrInvalidConfig = errors.New("invalid scene config")
	ErrMismatch      = errors.New("stored counts differ from truth")
)
