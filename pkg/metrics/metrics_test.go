package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{1, 5, 10}),
				WithSimilarityBuckets([]float64{0.5, 0.6, 0.9}),
				WithRefreshInterval(3*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created and registered", func() {
				So(manager, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
				So(manager.similarityBuckets, ShouldResemble, []float64{0.5, 0.6, 0.9})
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)

				manager.identitiesStored.Set(4)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_identities_stored" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.framesProcessed.WithLabelValues("cam-test"))
			RecordFrameProcessed("cam-test", 2*time.Millisecond)
			RecordFrameSkipped("cam-test")
			RecordDetections("cam-test", 3)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.framesProcessed.WithLabelValues("cam-test")), ShouldEqual, before+1)
			})
		})

		Convey("When recording identity lookups", func() {
			matches := testutil.ToFloat64(globalManager.identityMatches)
			misses := testutil.ToFloat64(globalManager.identityNearMisses)
			RecordIdentityLookup(0.93, true)
			RecordIdentityLookup(0.41, false)

			Convey("Then matches and near misses are split", func() {
				So(testutil.ToFloat64(globalManager.identityMatches), ShouldEqual, matches+1)
				So(testutil.ToFloat64(globalManager.identityNearMisses), ShouldEqual, misses+1)
			})
		})

		Convey("When updating the writer queue", func() {
			UpdateQueueCapacity(100)
			UpdateQueueSize(25, 100)

			Convey("Then utilization follows size over capacity", func() {
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				UpdateTracksActive("cam-test", 2)
				RecordTracksCreated("cam-test", 2)
				RecordTracksEvicted("cam-test", 1)
				RecordIdentityRegistered()
				UpdateIdentitiesStored(9)
				RecordEmbedMiss("cam-test")
				RecordEvent("entry")
				RecordPersistenceError("register")
				RecordStoreLatency("register", time.Millisecond)
				RecordQueueRejected()
				RecordHTTPRequest("/stats", "GET", "200", 1.5)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordEvent("exit")
			count, err := testutil.GatherAndCount(GetRegistry(), "footfall_pipeline_events_total")

			Convey("Then the footfall metrics are exposed", func() {
				So(err, ShouldBeNil)
				So(count, ShouldBeGreaterThan, 0)
			})
		})
	})
}
