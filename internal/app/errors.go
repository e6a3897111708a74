package service

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrNoAssessment    = errors.New("no assessment; run score first")
	ErrHistoryDisabled = errors.New("history is disabled")
	ErrInvalidConfig   = errors.New("invalid pipeline configuration")
)
