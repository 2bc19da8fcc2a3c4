package config

import "errors"

// ErrInvalidConfig wraps every Validate failure; ErrLoadConfig wraps
// provider and unmarshal failures in Load and LoadFile.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
