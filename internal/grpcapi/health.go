// Package grpcapi serves the standard gRPC health service so supervisors can
// probe the device without speaking its HTTP API.
package grpcapi

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ReaderService is reported SERVING only while tags are being scanned.
const ReaderService = "tapbox.reader"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(ReaderService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{grpc: gs, health: hs, logger: logger}
}

// SetScanning publishes the reader state.
func (s *Server) SetScanning(on bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if on {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ReaderService, st)
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls, giving up
// when ctx ends.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

// WatchScanning mirrors snapshot().ScanningEnabled into the health status
// until ctx ends.
func (s *Server) WatchScanning(ctx context.Context, every time.Duration, scanning func() bool) {
	last := scanning()
	s.SetScanning(last)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if on := scanning(); on != last {
				last = on
				s.SetScanning(on)
			}
		}
	}
}
