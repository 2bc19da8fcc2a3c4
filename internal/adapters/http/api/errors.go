package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

func wrapBadRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, msg)
}
