package ledger_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/okian/icexg/internal/domain/ledger"
	"github.com/okian/icexg/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func plays(ids ...int64) []model.RawPlayEvent {
	out := make([]model.RawPlayEvent, len(ids))
	for i, id := range ids {
		id := id
		out[i] = model.RawPlayEvent{EventID: &id, Index: i, TypeKey: model.TypeKeyShotOnGoal}
	}
	return out
}

func TestLedger(t *testing.T) {
	Convey("Given a new ledger", t, func() {
		l := ledger.New(ledger.WithCapacity(16))

		Convey("Then it is empty and everything is new", func() {
			So(l.Size(), ShouldEqual, 0)
			So(l.IsNew("1"), ShouldBeTrue)
			So(l.FilterNew(plays(1, 2, 3)), ShouldHaveLength, 3)
		})

		Convey("When filtering twice without committing", func() {
			events := plays(1, 2, 3)
			first := l.FilterNew(events)
			second := l.FilterNew(events)

			Convey("Then both calls return the same set", func() {
				So(second, ShouldResemble, first)
				So(l.Size(), ShouldEqual, 0)
			})
		})

		Convey("When some keys are committed", func() {
			l.Commit(ledger.Keys(plays(1, 2)))

			Convey("Then only the remaining events are new, in order", func() {
				fresh := l.FilterNew(plays(1, 2, 3, 4))
				So(fresh, ShouldHaveLength, 2)
				So(fresh[0].Key(), ShouldEqual, "3")
				So(fresh[1].Key(), ShouldEqual, "4")
				So(l.IsNew("1"), ShouldBeFalse)
				So(l.Size(), ShouldEqual, 2)
			})

			Convey("And the same keys are committed again", func() {
				l.Commit([]string{"1", "2"})
				l.MarkSeen("2")

				Convey("Then the size does not grow", func() {
					So(l.Size(), ShouldEqual, 2)
				})
			})

			Convey("And the ledger is reset", func() {
				l.Reset()

				Convey("Then every key is new again", func() {
					So(l.Size(), ShouldEqual, 0)
					So(l.IsNew("1"), ShouldBeTrue)
					So(l.FilterNew(plays(1, 2)), ShouldHaveLength, 2)
				})
			})
		})

		Convey("When plays carry no event id", func() {
			events := []model.RawPlayEvent{{Index: 0}, {Index: 1}}
			l.MarkSeen(events[0].Key())

			Convey("Then their position keys them", func() {
				fresh := l.FilterNew(events)
				So(fresh, ShouldHaveLength, 1)
				So(fresh[0].Key(), ShouldEqual, "idx:1")
			})
		})

		Convey("When many goroutines commit concurrently", func() {
			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 100; i++ {
						l.MarkSeen(fmt.Sprintf("%d", i))
						l.IsNew(fmt.Sprintf("%d", g))
					}
				}(g)
			}
			wg.Wait()

			Convey("Then every key is counted once", func() {
				So(l.Size(), ShouldEqual, 100)
			})
		})
	})
}
