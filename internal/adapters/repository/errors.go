package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound  = errors.New("file not found")
	ErrMalformed = errors.New("malformed file")
	ErrHistory   = errors.New("history store failed")
)
