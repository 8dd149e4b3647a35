// Package health serves the standard gRPC health service. Its status
// follows the reachability of the store, probed on an interval.
package health

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xxiimcha/lk-web/internal/logging"
)

// StoreService is the service name whose status tracks the store.
const StoreService = "lkweb.Store"

const DefaultInterval = 15 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	address  string
	store    Pinger
	interval time.Duration
	logger   logging.Logger
	onProbe  func(up bool)

	health *health.Server
}

func NewServer(address string, store Pinger, interval time.Duration, l logging.Logger) *Server {
	if interval <= 0 {
		interval = DefaultInterval
	}
	hs := health.NewServer()
	hs.SetServingStatus(StoreService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		address:  address,
		store:    store,
		interval: interval,
		logger:   l.With("module", "grpc_health"),
		health:   hs,
	}
}

// OnProbe registers a callback that receives every probe result.
func (s *Server) OnProbe(fn func(up bool)) {
	s.onProbe = fn
}

// probe pings the store once and publishes the result.
func (s *Server) probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	up := s.store.Ping(pctx) == nil
	status := healthpb.HealthCheckResponse_SERVING
	if !up {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(StoreService, status)

	if s.onProbe != nil {
		s.onProbe(up)
	}
	return up
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := s.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if up := s.probe(ctx); up != last {
				s.logger.Warn(ctx, "store health changed", "up", up)
				last = up
			}
		}
	}
}

func (s *Server) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)

	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
