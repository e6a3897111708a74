package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/riskdiag/internal/adapters/repository"
	"github.com/okian/riskdiag/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFileStore(t *testing.T) {
	Convey("Given a file store in a temp dir", t, func() {
		ctx := context.Background()
		dir := filepath.Join(t.TempDir(), "data")
		s, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)

		Convey("Then the directory is created", func() {
			info, err := os.Stat(dir)
			So(err, ShouldBeNil)
			So(info.IsDir(), ShouldBeTrue)
		})

		Convey("When JSON is written and read back", func() {
			in := map[string]any{"status": "success", "records": 3}
			So(s.WriteJSON(ctx, "report.json", in), ShouldBeNil)

			var out map[string]any
			So(s.ReadJSON(ctx, "report.json", &out), ShouldBeNil)

			Convey("Then the content survives", func() {
				So(out["status"], ShouldEqual, "success")
				So(out["records"], ShouldEqual, 3.0)
			})

			Convey("And a second write overwrites the first", func() {
				So(s.WriteJSON(ctx, "report.json", map[string]any{"status": "failed"}), ShouldBeNil)
				var again map[string]any
				So(s.ReadJSON(ctx, "report.json", &again), ShouldBeNil)
				So(again["status"], ShouldEqual, "failed")
				So(again, ShouldNotContainKey, "records")
			})
		})

		Convey("When observations round-trip through CSV", func() {
			day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
			obs := []model.Observation{
				{Source: "stock", SeriesID: "IRBT", Date: day, Value: 3.25, Bar: &model.Bar{Open: 3.1, High: 3.4, Low: 3.0, Close: 3.25, Volume: 120000}},
				{Source: "fred", SeriesID: "UNRATE", Date: day, Value: 4.1},
			}
			So(s.WriteObservations(ctx, "series.csv", obs), ShouldBeNil)
			got, err := s.ReadObservations(ctx, "series.csv")

			Convey("Then values and bars are preserved", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].Bar, ShouldNotBeNil)
				So(got[0].Bar.Volume, ShouldEqual, 120000)
				So(got[0].Date.Equal(day), ShouldBeTrue)
				So(got[1].Bar, ShouldBeNil)
				So(got[1].Value, ShouldEqual, 4.1)
				So(got[1].Key(), ShouldEqual, obs[1].Key())
			})
		})

		Convey("When a file is missing", func() {
			var v map[string]any
			err := s.ReadJSON(ctx, "absent.json", &v)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = s.ReadObservations(ctx, "absent.csv")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a file is removed", func() {
			So(s.WriteJSON(ctx, "stale.json", map[string]int{"n": 1}), ShouldBeNil)
			So(s.Remove(ctx, "stale.json"), ShouldBeNil)

			Convey("Then it is gone and removing again is a no-op", func() {
				var v map[string]int
				So(errors.Is(s.ReadJSON(ctx, "stale.json", &v), repository.ErrNotFound), ShouldBeTrue)
				So(s.Remove(ctx, "stale.json"), ShouldBeNil)
			})
		})

		Convey("When a file is malformed", func() {
			So(os.WriteFile(s.Path("bad.json"), []byte("{not json"), 0o600), ShouldBeNil)
			So(os.WriteFile(s.Path("bad.csv"), []byte("source,series_id,date,value,open,high,low,close,volume\nfred,X,yesterday,1,,,,,\n"), 0o600), ShouldBeNil)

			var v map[string]any
			So(errors.Is(s.ReadJSON(ctx, "bad.json", &v), repository.ErrMalformed), ShouldBeTrue)
			_, err := s.ReadObservations(ctx, "bad.csv")
			So(errors.Is(err, repository.ErrMalformed), ShouldBeTrue)
		})
	})
}
