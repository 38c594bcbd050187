package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/icexg/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity two", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		ctx := context.Background()

		Convey("Then it starts empty and open", func() {
			So(q.Len(), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("When the same game is enqueued twice", func() {
			So(q.Enqueue(ctx, queue.PollRequest{GameID: "g1"}), ShouldBeNil)
			err := q.Enqueue(ctx, queue.PollRequest{GameID: "g1"})

			Convey("Then the second request is rejected", func() {
				So(errors.Is(err, queue.ErrDuplicate), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, queue.PollRequest{GameID: "g1"}), ShouldBeNil)
			So(q.Enqueue(ctx, queue.PollRequest{GameID: "g2"}), ShouldBeNil)
			err := q.Enqueue(ctx, queue.PollRequest{GameID: "g3"})

			Convey("Then further requests are rejected", func() {
				So(errors.Is(err, queue.ErrFull), ShouldBeTrue)
			})
		})

		Convey("When a request is consumed", func() {
			So(q.Enqueue(ctx, queue.PollRequest{GameID: "g1"}), ShouldBeNil)
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			var got queue.PollRequest
			select {
			case got = <-q.Dequeue(cctx):
			case <-time.After(time.Second):
			}

			Convey("Then it carries its game and timestamp and the game can be queued again", func() {
				So(got.GameID, ShouldEqual, "g1")
				So(got.RequestedAt.IsZero(), ShouldBeFalse)
				So(q.Enqueue(ctx, queue.PollRequest{GameID: "g1"}), ShouldBeNil)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, queue.PollRequest{GameID: "g1"}), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails and consumers drain then stop", func() {
				So(errors.Is(q.Enqueue(ctx, queue.PollRequest{GameID: "g2"}), queue.ErrClosed), ShouldBeTrue)
				So(q.IsClosed(), ShouldBeTrue)

				ch := q.Dequeue(ctx)
				r, ok := <-ch
				So(ok, ShouldBeTrue)
				So(r.GameID, ShouldEqual, "g1")
				_, ok = <-ch
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then enqueue fails with the context error", func() {
				So(errors.Is(q.Enqueue(cctx, queue.PollRequest{GameID: "g1"}), context.Canceled), ShouldBeTrue)
			})
		})
	})
}
