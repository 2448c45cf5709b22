package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func withManager(m *Manager, fn func()) {
	prev := globalManager
	SetGlobal(m)
	defer SetGlobal(prev)
	fn()
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{100, 1, 10}),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(m.namespace, ShouldEqual, "test")
				So(m.subsystem, ShouldEqual, "unit")
				So(m.histogramBuckets, ShouldResemble, []float64{1, 10, 100})
				So(m.refreshInterval, ShouldEqual, 3*time.Second)
			})

			Convey("Then collectors carry the prefix and constant labels", func() {
				m.fetchRequests.WithLabelValues("ok").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_x_fetch_requests_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given a manager installed as the global recorder", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		withManager(m, func() {
			Convey("When recording acquisition metrics", func() {
				RecordFetch("ok")
				RecordFetch("ok")
				RecordFetchRetry("throttled")
				RecordCacheLookup("http", true)
				RecordCacheLookup("http", false)
				RecordCacheWrite("ai")
				RecordLimiterWait("ai_tokens", 250*time.Millisecond)

				Convey("Then the counters move", func() {
					So(testutil.ToFloat64(m.fetchRequests.WithLabelValues("ok")), ShouldEqual, 2)
					So(testutil.ToFloat64(m.fetchRetries.WithLabelValues("throttled")), ShouldEqual, 1)
					So(testutil.ToFloat64(m.cacheLookups.WithLabelValues("http", "hit")), ShouldEqual, 1)
					So(testutil.ToFloat64(m.cacheLookups.WithLabelValues("http", "miss")), ShouldEqual, 1)
					So(testutil.ToFloat64(m.cacheWrites.WithLabelValues("ai")), ShouldEqual, 1)
				})
			})

			Convey("When recording pipeline metrics", func() {
				UpdateTickersTotal(3)
				RecordTickerCompleted(time.Second)
				RecordTickerFailed()
				RecordEventDropped("empty_transcript")
				RecordEventScored()
				AddWorkerActive(2)
				AddWorkerActive(-1)
				RecordRun(true, 2*time.Second)

				Convey("Then gauges and counters reflect them", func() {
					So(testutil.ToFloat64(m.tickersTotal), ShouldEqual, 3)
					So(testutil.ToFloat64(m.tickersCompleted), ShouldEqual, 1)
					So(testutil.ToFloat64(m.tickersFailed), ShouldEqual, 1)
					So(testutil.ToFloat64(m.eventsDropped.WithLabelValues("empty_transcript")), ShouldEqual, 1)
					So(testutil.ToFloat64(m.workerActive), ShouldEqual, 1)
					So(testutil.ToFloat64(m.runs.WithLabelValues("success")), ShouldEqual, 1)
					So(testutil.ToFloat64(m.runDuration), ShouldEqual, 2)
				})
			})
		})
	})
}

func TestDisabledManager(t *testing.T) {
	Convey("Given a disabled manager", t, func() {
		m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))

		withManager(m, func() {
			Convey("Then recorders are no-ops", func() {
				So(func() {
					RecordFetch("ok")
					RecordAIRequest("summary", "ok", time.Second)
					RecordHTTPRequest("stats", "GET", "200", 1)
				}, ShouldNotPanic)
				So(testutil.ToFloat64(m.fetchRequests.WithLabelValues("ok")), ShouldEqual, 0)
			})
		})
	})
}

func TestGlobalRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		Convey("Then it exposes the default collectors", func() {
			RecordFetch("cached")
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "earnsignal_pipeline_fetch_requests_total")
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}
