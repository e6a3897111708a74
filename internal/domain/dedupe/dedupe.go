// Package dedupe drops records whose identity was already seen.
package dedupe

import (
	"context"

	"github.com/okian/riskdiag/internal/domain/model"
)

// Deduper records seen keys so each identity is ingested once.
type Deduper interface {
	// SeenAndRecord reports whether key was seen and records it if not.
	SeenAndRecord(ctx context.Context, key string) bool
}

// inMemoryDeduper keeps every key of one batch. Not safe for concurrent use.
type inMemoryDeduper struct {
	seen map[string]struct{}
}

// NewInMemoryDeduper creates an empty deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// UniqueBy returns items with duplicate keys removed; the first occurrence wins.
func UniqueBy[T any](items []T, key func(T) string) []T {
	d := NewInMemoryDeduper()
	out := make([]T, 0, len(items))
	for _, it := range items {
		if d.SeenAndRecord(context.Background(), key(it)) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Observations drops observations whose (source, series, date) repeats.
func Observations(obs []model.Observation) []model.Observation {
	return UniqueBy(obs, model.Observation.Key)
}
