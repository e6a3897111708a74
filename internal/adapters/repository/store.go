// Package repository persists collected datasets, assessments and run history.
package repository

import (
	"context"

	"github.com/okian/riskdiag/internal/domain/model"
)

// Store reads and writes named files under the data directory. Every write
// replaces the previous content of the file.
type Store interface {
	// Path returns the absolute location of name.
	Path(name string) string

	// WriteJSON encodes v as indented JSON into name.
	WriteJSON(ctx context.Context, name string, v any) error
	// ReadJSON decodes name into v. Returns ErrNotFound if the file is absent.
	ReadJSON(ctx context.Context, name string, v any) error

	// WriteObservations stores obs as CSV into name.
	WriteObservations(ctx context.Context, name string, obs []model.Observation) error
	// ReadObservations loads a CSV written by WriteObservations.
	ReadObservations(ctx context.Context, name string) ([]model.Observation, error)

	// Remove deletes name. A missing file is not an error.
	Remove(ctx context.Context, name string) error
}
