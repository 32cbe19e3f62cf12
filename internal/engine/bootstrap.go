package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ima/broker"
	"ima/internal/api"
	"ima/internal/api/middleware"
	"ima/internal/config"
	"ima/internal/intake"
	"ima/internal/pipeline"
	"ima/internal/probe"
	"ima/internal/telemetry"
	"ima/internal/transport"
)

func Bootstrap(ctx context.Context, cfg config.Config) (*Engine, error) {
	// 1. metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)

	// 2. pipeline
	p, err := pipeline.Compile(ctx, cfg, pipeline.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	gw := intake.New(p.Broker, p.Queue, intake.WithMetrics(metrics))

	// 3. transport server
	srv, err := transport.StartServer(cfg.GRPCPort)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("transport: %w", err)
	}

	// 4. http
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		srv.Stop()
		_ = p.Close()
		return nil, fmt.Errorf("http: %w", err)
	}
	check := func(ctx context.Context) probe.Result { return probe.Check(ctx, p.Broker, p.Store) }

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Intake: gw,
		Drain:  p.Drainer,
		Count:  func(ctx context.Context) int { return broker.InspectCount(ctx, p.Broker, p.Queue) },
		Probe:  check,
	}, api.Options{
		ServiceName: cfg.ServiceName,
		CORS:        middleware.CORSOptions{AllowOrigins: []string{"*"}},
	})

	// 5. metrics endpoint
	metricsSrv := telemetry.Expose(cfg.MetricsPort, reg)

	return &Engine{
		transport: srv,
		pipeline:  p,
		http: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		httpLis:        lis,
		metrics:        metricsSrv,
		probe:          check,
		healthInterval: cfg.HealthInterval,
	}, nil
}
