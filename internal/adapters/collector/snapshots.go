package collector

import (
	"context"
	"fmt"

	"github.com/okian/riskdiag/internal/domain/model"
)

// shipmentsSource reads a customs shipment profile served as JSON. Without a
// URL the runner substitutes the curated snapshot.
type shipmentsSource struct {
	c   *Client
	url string
}

func (s *shipmentsSource) Name() string { return SourceShipments }

func (s *shipmentsSource) Outputs(Query) []string { return []string{FileShipments} }

func (s *shipmentsSource) Collect(ctx context.Context, _ Query) (Dataset, error) {
	if s.url == "" {
		return Dataset{}, fmt.Errorf("%w: shipments_url", ErrMissingKey)
	}
	var p model.ShipmentProfile
	if err := s.c.GetJSON(ctx, s.url, nil, &p); err != nil {
		return Dataset{}, err
	}
	if len(p.Yearly) == 0 && len(p.Monthly) == 0 {
		return Dataset{}, fmt.Errorf("%w: shipment profile has no counts", ErrSourceUnavailable)
	}
	return Dataset{Documents: []Document{{Name: FileShipments, Value: &p, Records: shipmentRecords(&p)}}}, nil
}

// snapshotSource publishes a curated dataset that no public API provides.
type snapshotSource[T any] struct {
	name    string
	file    string
	value   *T
	records func(*T) int
}

func newSnapshotSource[T any](name, file string, value *T, records func(*T) int) Source {
	return &snapshotSource[T]{name: name, file: file, value: value, records: records}
}

func (s *snapshotSource[T]) Name() string { return s.name }

func (s *snapshotSource[T]) Outputs(Query) []string { return []string{s.file} }

func (s *snapshotSource[T]) Collect(ctx context.Context, _ Query) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	if s.value == nil {
		return Dataset{}, fmt.Errorf("%w: no curated %s snapshot", ErrNotApplicable, s.name)
	}
	return Dataset{Documents: []Document{{Name: s.file, Value: s.value, Records: s.records(s.value)}}}, nil
}

func shipmentRecords(p *model.ShipmentProfile) int {
	return len(p.Yearly) + len(p.Monthly) + len(p.Suppliers)
}

func reviewRecords(r *model.ReviewSnapshot) int { return len(r.Platforms) }

func newsRecords(n *model.NewsSnapshot) int { return len(n.Events) }
