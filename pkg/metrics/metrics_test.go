package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "icexg")
				So(manager.subsystem, ShouldEqual, "pipeline")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "unit")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
				So(manager.constLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When empty options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "icexg")
				So(manager.subsystem, ShouldEqual, "pipeline")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a known poll outcome", func() {
			before := testutil.ToFloat64(globalManager.polls.WithLabelValues(OutcomeScored))
			err := RecordPoll(OutcomeScored, 12)

			Convey("Then the counter should increase", func() {
				So(err, ShouldBeNil)
				So(testutil.ToFloat64(globalManager.polls.WithLabelValues(OutcomeScored)), ShouldEqual, before+1)
			})
		})

		Convey("When recording an unknown poll outcome", func() {
			err := RecordPoll("maybe", 1)

			Convey("Then it should return ErrUnknownOutcome", func() {
				So(errors.Is(err, ErrUnknownOutcome), ShouldBeTrue)
			})
		})

		Convey("When updating per-session gauges", func() {
			UpdateLedgerEntries("g1", 7)
			UpdateTableRows("g1", 3)

			Convey("Then the gauges should hold the values until forgotten", func() {
				So(testutil.ToFloat64(globalManager.ledgerEntries.WithLabelValues("g1")), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.tableRows.WithLabelValues("g1")), ShouldEqual, 3)

				ForgetSession("g1")
				So(testutil.CollectAndCount(globalManager.ledgerEntries), ShouldEqual, 0)
			})
		})

		Convey("When calling the remaining helpers", func() {
			So(func() {
				RecordEventsFiltered(3, 10)
				RecordRowsExtracted(2)
				RecordRowsCommitted(2)
				UpdateSessionsActive(1)
				RecordModelChange("distance", true)
				RecordModelChange("distance", false)
				UpdateLiveGames(4)
				RecordFeedRequest("play-by-play", true, 30)
				RecordScoringLatency(15)
				RecordScoringError("unavailable")
				UpdateQueueSize(1)
				UpdateQueueCapacity(16)
				RecordQueueEnqueue()
				RecordQueueDropped("full")
				UpdateWorkerCount(2)
				UpdateStreamClients(1)
				RecordStreamPublished()
				RecordStreamDropped()
				RecordHTTPRequest("poll", "POST", "200")
				RecordHTTPRequestDuration("poll", "POST", "200", 4)
				RecordErrorByComponent("feed", "decode")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
