package imagestore

import "errors"

// Sentinel kinds for image store errors.
var (
	ErrNilImage = errors.New("nil image")
)
