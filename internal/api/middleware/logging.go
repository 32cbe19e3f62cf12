package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"ima/internal/logging"
)

// Logging logs one line per request with the trace and span ids that otelgin
// put on the request context.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		sc := trace.SpanFromContext(c.Request.Context()).SpanContext()
		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		logging.L().Log(c.Request.Context(), level, "HTTP request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", time.Since(start).String(),
			"user_agent", c.Request.UserAgent(),
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
		)
	}
}
