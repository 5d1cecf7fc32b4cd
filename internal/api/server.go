package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
	"github.com/abcfood/fingerprint-bridge/internal/telemetry"
	"github.com/abcfood/fingerprint-bridge/pkg/config"
	"github.com/abcfood/fingerprint-bridge/pkg/scheduler"
	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

// Server wraps the HTTP listener. Created stopped; Start blocks until the
// context is cancelled or the listener fails.
type Server struct {
	server       *http.Server
	addr         string
	shutdownOnce sync.Once
}

// NewServer builds the API server over the facade. metrics may be nil
// when Prometheus export is disabled.
func NewServer(settings *config.Settings, svc *service.Service, sched *scheduler.Scheduler, metrics *telemetry.Metrics, version string) *Server {
	addr := net.JoinHostPort(settings.APIHost, strconv.Itoa(settings.APIPort))
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: NewRouter(settings, svc, sched, metrics, version),
			// No WriteTimeout: a queued device session can legitimately
			// hold a request for minutes.
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		addr: addr,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}
