package telemetry

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.DrainRuns.WithLabelValues("completed").Inc()
	m.IntakePublished.WithLabelValues("ok").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DrainRuns.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IntakePublished.WithLabelValues("ok")))

	n, err := testutil.GatherAndCount(reg, "ima_drain_runs_total", "ima_intake_published_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second set on a fresh registry must not collide
	assert.NotPanics(t, func() { NewMetrics(prometheus.NewRegistry()) })
}

func TestExpose_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg).DrainInProgress.Set(1)

	srv := Expose(39187, reg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:39187/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		body = string(raw)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "ima_drain_in_progress 1")
}

func TestInitTracerProvider_RecordsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	rec := tracetest.NewSpanRecorder()
	shutdown, err := InitTracerProvider("ima-test", sdktrace.WithSpanProcessor(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "probe", rec.Ended()[0].Name())
}
