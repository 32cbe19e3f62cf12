package transport

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"ima/internal/probe"
)

// Per-component health service names; "" is the overall status.
const (
	ServiceBroker = "broker"
	ServiceStore  = "store"
)

type Server struct {
	grpc   *grpc.Server
	lis    net.Listener
	health *health.Server
}

// StartServer listens on port (0 picks a free one) and registers the health
// service. Everything reports NOT_SERVING until the first SetStatus.
func StartServer(port int) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		lis:    lis,
		health: health.NewServer(),
	}
	for _, svc := range []string{"", ServiceBroker, ServiceStore} {
		s.health.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// SetStatus publishes the outcome of a connection probe.
func (s *Server) SetStatus(res probe.Result) {
	s.health.SetServingStatus(ServiceBroker, servingStatus(res.Broker.Status == probe.StatusOK))
	s.health.SetServingStatus(ServiceStore, servingStatus(res.Store.Status == probe.StatusOK))
	s.health.SetServingStatus("", servingStatus(res.OK()))
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

func (s *Server) Serve() error {
	return s.grpc.Serve(s.lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
