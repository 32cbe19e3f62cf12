package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"ima/internal/logging"
	"ima/internal/pipeline"
	"ima/internal/probe"
	"ima/internal/transport"
)

const shutdownTimeout = 10 * time.Second

type Engine struct {
	transport *transport.Server
	pipeline  *pipeline.Pipeline
	http      *http.Server
	httpLis   net.Listener
	metrics   *http.Server

	probe          func(context.Context) probe.Result
	healthInterval time.Duration
}

// HTTPAddr is the address the API listens on.
func (e *Engine) HTTPAddr() net.Addr { return e.httpLis.Addr() }

// GRPCAddr is the address of the health service.
func (e *Engine) GRPCAddr() net.Addr { return e.transport.Addr() }

// Run serves until ctx is cancelled or a server fails, then shuts everything
// down. A drain in flight finishes on its own; its context is detached.
func (e *Engine) Run(ctx context.Context) error {
	errc := make(chan error, 2)
	go func() { errc <- e.transport.Serve() }()
	go func() {
		if err := e.http.Serve(e.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go e.watchHealth(ctx)

	logging.L().Info("engine started",
		"http", e.HTTPAddr().String(),
		"grpc", e.GRPCAddr().String(),
		"metrics", e.metrics.Addr)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		logging.L().Error("server stopped", "err", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = errors.Join(err,
		e.http.Shutdown(sctx),
		e.metrics.Shutdown(sctx),
	)
	e.transport.Stop()
	err = errors.Join(err, e.pipeline.Close())
	logging.L().Info("engine stopped")
	return err
}

// watchHealth probes broker and store now and then every healthInterval.
func (e *Engine) watchHealth(ctx context.Context) {
	update := func() {
		pctx, cancel := context.WithTimeout(ctx, e.healthInterval)
		defer cancel()
		e.transport.SetStatus(e.probe(pctx))
	}
	update()

	t := time.NewTicker(e.healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			update()
		}
	}
}
