package collector_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/riskdiag/internal/adapters/collector"
	"github.com/okian/riskdiag/internal/adapters/repository"
	"github.com/okian/riskdiag/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeSource struct {
	name  string
	files []string
	ds    collector.Dataset
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Outputs(collector.Query) []string { return f.files }
func (f *fakeSource) Collect(context.Context, collector.Query) (collector.Dataset, error) {
	f.calls++
	return f.ds, f.err
}

func TestRunner(t *testing.T) {
	Convey("Given a runner over a temp store", t, func() {
		ctx := context.Background()
		store, err := repository.NewFileStore(t.TempDir())
		So(err, ShouldBeNil)

		day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
		ok := &fakeSource{name: "fred", files: []string{"fred_UNRATE.csv"}, ds: collector.Dataset{
			Series: []collector.SeriesFile{{Name: "fred_UNRATE.csv", Observations: []model.Observation{
				{Source: "fred", SeriesID: "UNRATE", Date: day, Value: 4.1},
				{Source: "fred", SeriesID: "UNRATE", Date: day, Value: 9.9},
				{Source: "fred", SeriesID: "UNRATE", Date: day.AddDate(0, 1, 0), Value: 4.2},
			}}},
		}}
		broken := &fakeSource{name: "osha", files: []string{"osha.json"}, err: fmt.Errorf("%w: HTTP 500", collector.ErrSourceUnavailable)}
		keyless := &fakeSource{name: "patents", files: []string{"patents.json"}, err: fmt.Errorf("%w: patents_api_key", collector.ErrMissingKey)}
		shipments := &fakeSource{name: "shipments", files: []string{"shipments.json"}, err: fmt.Errorf("%w: timeout", collector.ErrSourceUnavailable)}

		snapshot := &model.ShipmentProfile{TotalShipments: 10, Yearly: []model.YearCount{{Year: 2024, Count: 10}}}
		fixed := time.Date(2026, 2, 15, 8, 0, 0, 0, time.UTC)
		r := collector.NewRunner(store, []collector.Source{ok, broken, keyless, shipments},
			collector.WithFallbacks(collector.Fallbacks(collector.Snapshots{Shipments: snapshot})),
			collector.WithClock(func() time.Time { return fixed }),
		)

		Convey("When a stale file exists for the failing source", func() {
			So(store.WriteJSON(ctx, "osha.json", map[string]int{"old": 1}), ShouldBeNil)
			rep, err := r.Run(ctx, collector.Query{Company: "Acme"})
			So(err, ShouldBeNil)

			Convey("Then every source ran once and statuses are recorded", func() {
				So(ok.calls+broken.calls+keyless.calls+shipments.calls, ShouldEqual, 4)
				So(len(rep.Results), ShouldEqual, 4)
				So(rep.RunID, ShouldNotBeEmpty)
				So(rep.StartedAt, ShouldEqual, fixed)
				So(rep.Counts(), ShouldResemble, map[string]int{
					collector.StatusSuccess:  1,
					collector.StatusFailed:   1,
					collector.StatusSkipped:  1,
					collector.StatusFallback: 1,
				})
			})

			Convey("And duplicate observations are dropped on write", func() {
				res, found := rep.Result("fred")
				So(found, ShouldBeTrue)
				So(res.Records, ShouldEqual, 2)
				obs, err := store.ReadObservations(ctx, "fred_UNRATE.csv")
				So(err, ShouldBeNil)
				So(model.Values(obs), ShouldResemble, []float64{4.1, 4.2})
			})

			Convey("And the failed source leaves no stale output", func() {
				res, _ := rep.Result("osha")
				So(res.Error, ShouldContainSubstring, "HTTP 500")
				var v map[string]int
				So(errors.Is(store.ReadJSON(ctx, "osha.json", &v), repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And the snapshot replaces the failed shipments source", func() {
				res, _ := rep.Result("shipments")
				So(res.Status, ShouldEqual, collector.StatusFallback)
				So(res.Records, ShouldEqual, 1)
				var p model.ShipmentProfile
				So(store.ReadJSON(ctx, collector.FileShipments, &p), ShouldBeNil)
				So(p.TotalShipments, ShouldEqual, 10)
			})

			Convey("And the report is persisted", func() {
				var saved collector.Report
				So(store.ReadJSON(ctx, collector.FileReport, &saved), ShouldBeNil)
				So(saved.RunID, ShouldEqual, rep.RunID)
				So(len(saved.Results), ShouldEqual, 4)
				So(saved.Results[2].Status, ShouldEqual, collector.StatusSkipped)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := r.Run(cctx, collector.Query{Company: "Acme"})

			Convey("Then no source runs", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(ok.calls, ShouldEqual, 0)
			})
		})
	})
}
