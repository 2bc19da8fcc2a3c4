package tracker

import "errors"

// Sentinel errors for tracker configuration.
var (
	ErrUnknownMatcher = errors.New("unknown matcher")
)
