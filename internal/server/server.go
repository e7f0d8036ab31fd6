// Package server exposes the webhook endpoint over HTTP and a gRPC health service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

type Server struct {
	cfg     common.ServerConfig
	handler http.Handler
	logger  *slog.Logger
}

func New(cfg common.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	var grpcLis net.Listener
	if s.cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			_ = httpLis.Close()
			return err
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves HTTP on httpLis and, when grpcLis is not nil, the gRPC health service.
// On cancellation health flips to NOT_SERVING and both servers drain within the
// shutdown timeout.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	httpSrv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	var (
		grpcServer *grpc.Server
		hs         *health.Server
	)
	if grpcLis != nil {
		grpcServer = grpc.NewServer()
		hs = health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, hs)
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		// Reflection for grpcurl
		reflection.Register(grpcServer)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http serving", "addr", httpLis.Addr().String())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			s.logger.Info("grpc health serving", "addr", grpcLis.Addr().String())
			return grpcServer.Serve(grpcLis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down...")
		if hs != nil {
			hs.Shutdown()
		}
		shutdownCtx, cancel := common.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("stopped")
	return err
}
