package worker

import "errors"

// Sentinel kinds for writer errors.
var (
	ErrStopped = errors.New("writer stopped")
)
