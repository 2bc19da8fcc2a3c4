package service

import "errors"

// Sentinel errors for the service.
var (
	ErrNotStarted = errors.New("service not started")
	ErrNoStreams  = errors.New("no streams to run")
)
