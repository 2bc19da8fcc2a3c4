package replay

import "errors"

// Sentinel kinds for replay errors.
var (
	ErrMalformed = errors.New("malformed replay record")
	ErrImage     = errors.New("frame image unavailable")
)
