package main

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/riskdiag/internal/config"
	"github.com/okian/riskdiag/pkg/logger"
)

func TestScheduler(t *testing.T) {
	convey.Convey("Given a scheduled job that is still running", t, func() {
		_ = logger.InitWithWriter(io.Discard, "text")
		var calls atomic.Int32
		started := make(chan struct{})
		release := make(chan struct{})
		sched, id, err := newScheduler(context.Background(), "0 8 * * *", logger.Get(), func(context.Context) error {
			calls.Add(1)
			close(started)
			<-release
			return nil
		})
		convey.So(err, convey.ShouldBeNil)
		job := sched.Entry(id).WrappedJob

		done := make(chan struct{})
		go func() {
			job.Run()
			close(done)
		}()
		<-started

		convey.Convey("When the next tick fires", func() {
			job.Run()
			close(release)
			<-done

			convey.Convey("Then the tick is skipped instead of overlapping", func() {
				convey.So(calls.Load(), convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given a job that fails", t, func() {
		_ = logger.InitWithWriter(io.Discard, "text")
		var calls atomic.Int32
		sched, id, err := newScheduler(context.Background(), "@every 1h", logger.Get(), func(context.Context) error {
			calls.Add(1)
			return errors.New("upstream down")
		})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the error is logged and later ticks still run", func() {
			sched.Entry(id).WrappedJob.Run()
			sched.Entry(id).WrappedJob.Run()
			convey.So(calls.Load(), convey.ShouldEqual, 2)
		})
	})

	convey.Convey("Given a malformed expression", t, func() {
		_, _, err := newScheduler(context.Background(), "every morning", logger.Get(), func(context.Context) error { return nil })
		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}
