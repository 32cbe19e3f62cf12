// Package api exposes the HTTP routes of the service.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"ima/internal/api/middleware"
	"ima/internal/pipeline"
	"ima/internal/probe"
)

// Submitter publishes messages and keeps the send log.
type Submitter interface {
	Submit(ctx context.Context, raw string) error
	Sent() []string
}

type Drainer interface {
	Drain(ctx context.Context, force bool) pipeline.Report
}

// Deps are the operations the handlers call.
type Deps struct {
	Intake Submitter
	Drain  Drainer
	// Count returns the queue depth or broker.CountUnknown.
	Count func(ctx context.Context) int
	Probe func(ctx context.Context) probe.Result
}

type Options struct {
	ServiceName string
	CORS        middleware.CORSOptions
}

func NewRouter(deps Deps, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(opts.CORS))
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(middleware.Logging())

	h := &handlers{deps: deps}
	r.POST("/enviar-mensagem", h.sendMessage)
	r.GET("/contagem-fila", h.queueCount)
	r.POST("/processar-fila", h.processQueue)
	r.GET("/testar-conexoes", h.testConnections)
	r.GET("/mensagens-enviadas", h.sentMessages)
	return r
}
