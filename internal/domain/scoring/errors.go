package scoring

import "errors"

// Sentinel errors returned by model validation and evaluation.
var (
	ErrInvalidModel     = errors.New("invalid scoring model")
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrUnknownProfile   = errors.New("unknown profile")
)
