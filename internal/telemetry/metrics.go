package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ima/internal/logging"
)

// Metrics groups the collectors the service updates. Build one per registry.
type Metrics struct {
	DrainRuns       *prometheus.CounterVec // outcome: completed|empty|skipped|failed
	DrainMessages   *prometheus.CounterVec // verdict: acked|requeued|discarded|missing
	DrainDuration   prometheus.Histogram
	DrainInProgress prometheus.Gauge
	IntakePublished *prometheus.CounterVec // status: ok|error
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DrainRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ima_drain_runs_total",
			Help: "Queue drain invocations by outcome.",
		}, []string{"outcome"}),
		DrainMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ima_drain_messages_total",
			Help: "Messages settled by the drain, by verdict.",
		}, []string{"verdict"}),
		DrainDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ima_drain_duration_seconds",
			Help:    "Wall time of drains that reached the broker.",
			Buckets: prometheus.DefBuckets,
		}),
		DrainInProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "ima_drain_in_progress",
			Help: "Drains currently running.",
		}),
		IntakePublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ima_intake_published_total",
			Help: "Messages submitted through the intake gateway, by status.",
		}, []string{"status"}),
	}
}

// Expose serves g on :port/metrics in the background. Shut the returned
// server down on exit.
func Expose(port int, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server stopped", "port", port, "err", err)
		}
	}()
	return srv
}
