package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
)

// ServiceName is the health entry tracking the remote team services
const ServiceName = "pokemon.teams.Remote"

// Probe checks that the remote services are reachable
type Probe func(ctx context.Context) error

// Options configures the health server
type Options struct {
	// Interval between probes. Zero means 15s.
	Interval time.Duration
	// Timeout of a single probe. Zero means 5s.
	Timeout time.Duration
}

// Server exposes grpc.health.v1.Health with its status driven by a probe
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	probe  Probe
	opts   Options

	mu      sync.Mutex
	serving bool
}

// NewServer creates the gRPC server with the health and reflection services
// registered. Everything starts NOT_SERVING until the first probe passes.
func NewServer(probe Probe, opts Options, serverOpts ...grpc.ServerOption) *Server {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	s := &Server{
		grpc:   grpc.NewServer(serverOpts...),
		health: health.NewServer(),
		probe:  probe,
		opts:   opts,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Check runs the probe once and publishes the resulting status
func (s *Server) Check(ctx context.Context) bool {
	ok := true
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
		if err := s.probe(ctx); err != nil {
			logger.Warn("gRPC: Remote services unhealthy", "error", err)
			ok = false
		}
	}

	s.mu.Lock()
	changed := s.serving != ok
	s.serving = ok
	s.mu.Unlock()

	if ok {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	if changed {
		logger.Info("gRPC: Health status changed", "serving", ok)
	}
	return ok
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Watch probes on every interval until ctx is done. The returned channel
// closes when the loop exits.
func (s *Server) Watch(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	s.Check(ctx)

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check(ctx)
			}
		}
	}()
	return done
}

// Serve accepts connections on lis until Stop is called
func (s *Server) Serve(lis net.Listener) error {
	logger.Info("gRPC server starting", "address", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
