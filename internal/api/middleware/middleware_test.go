package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ima/internal/logging"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestCORS_WildcardAndPreflight(t *testing.T) {
	r := newRouter(CORS(CORSOptions{}))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))

	// preflight on a path with no OPTIONS route
	resp = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Contains(t, resp.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "Content-Type", resp.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORS_ListedOrigin(t *testing.T) {
	r := newRouter(CORS(CORSOptions{AllowOrigins: []string{"http://app.local"}}))

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://APP.local")
	r.ServeHTTP(resp, req)
	assert.Equal(t, "http://APP.local", resp.Header().Get("Access-Control-Allow-Origin"))

	resp = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.local")
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogging_CarriesTraceID(t *testing.T) {
	prev := logging.L()
	t.Cleanup(func() { logging.Set(prev) })
	var buf bytes.Buffer
	logging.Set(logging.New(&buf, logging.Options{}))

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	r := newRouter(otelgin.Middleware("test", otelgin.WithTracerProvider(tp)), Logging())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	line := buf.String()
	assert.True(t, strings.Contains(line, "trace_id="+spans[0].SpanContext.TraceID().String()), line)
	assert.Contains(t, line, "path=/ping")
	assert.Contains(t, line, "status=200")
}
