package repository

import "os"

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithFileMode sets the permission bits of written files.
func WithFileMode(mode os.FileMode) Option {
	return func(s *FileStore) {
		if mode != 0 {
			s.mode = mode
		}
	}
}

// HistoryOption applies a configuration option to the History.
type HistoryOption func(*History)

// WithAlertThreshold sets the composite change that raises an alert.
func WithAlertThreshold(threshold float64) HistoryOption {
	return func(h *History) {
		if threshold > 0 {
			h.threshold = threshold
		}
	}
}

// WithMovers sets how many dimensions are reported as movers.
func WithMovers(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.movers = n
		}
	}
}
