package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lagerstatus",
			Name:      "sweep_runs_total",
			Help:      "Count of reservation sweeps by outcome.",
		},
		[]string{"outcome"},
	)

	sweepRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lagerstatus",
			Name:      "sweep_rows_total",
			Help:      "Count of candidate rows by classification.",
		},
		[]string{"state"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lagerstatus",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in a reservation sweep.",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		},
	)

	lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lagerstatus",
			Name:      "sweep_last_success_timestamp_seconds",
			Help:      "Unix time of the last sweep that completed.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lagerstatus",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(sweepRuns, sweepRows, sweepDuration, lastSuccess, httpRequests)
	})
}

func IncSweepRun(outcome string) {
	sweepRuns.WithLabelValues(outcome).Inc()
}

func AddSweepRows(state string, n int) {
	if n <= 0 {
		return
	}
	sweepRows.WithLabelValues(state).Add(float64(n))
}

func ObserveSweepDuration(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}

func SetLastSuccess(t time.Time) {
	lastSuccess.Set(float64(t.Unix()))
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
