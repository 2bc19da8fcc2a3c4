package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("identity not found")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrInvalidEvent      = errors.New("invalid event")
	ErrEmptyEmbedding    = errors.New("empty embedding")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrClosed            = errors.New("store closed")
	ErrUnknownIndex      = errors.New("unknown match index")
)
