package collector

import "errors"

// Sentinel errors for source collection.
var (
	// ErrSourceUnavailable covers HTTP errors, timeouts and malformed payloads.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMissingKey means the source needs an API key or endpoint that is not configured.
	ErrMissingKey = errors.New("api key missing")
	// ErrNotApplicable means the query lacks what the source needs (no ticker, no CIK, nothing curated).
	ErrNotApplicable = errors.New("source not applicable")
	// ErrUnknownSource is returned by Build for names no source answers to.
	ErrUnknownSource = errors.New("unknown source")
)
