package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"ima/internal/probe"
)

func TestHealth_ReflectsProbe(t *testing.T) {
	srv, err := StartServer(0)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)

	_, port, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	addr := net.JoinHostPort("127.0.0.1", port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := CheckHealth(ctx, addr, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	srv.SetStatus(probe.Result{
		Broker: probe.Component{Status: probe.StatusOK},
		Store:  probe.Component{Status: probe.StatusError, Error: "down"},
	})
	st, err = CheckHealth(ctx, addr, ServiceBroker)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)
	st, err = CheckHealth(ctx, addr, ServiceStore)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	srv.SetStatus(probe.Result{
		Broker: probe.Component{Status: probe.StatusOK},
		Store:  probe.Component{Status: probe.StatusOK},
	})
	st, err = CheckHealth(ctx, addr, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	_, err = CheckHealth(ctx, addr, "unknown")
	assert.Error(t, err)
}
