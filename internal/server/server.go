// Package server wires the document HTTP API, the event relay and the
// middleware chain into a runnable HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/estisync/internal/config"
	"github.com/iudanet/estisync/internal/server/handlers"
	"github.com/iudanet/estisync/internal/server/middleware"
	"github.com/iudanet/estisync/internal/transport/memory"
	"github.com/iudanet/estisync/pkg/api"
)

// Server сервер документов
type Server struct {
	http            *http.Server
	limiter         *middleware.RateLimiter
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New собирает маршруты и middleware.
// db используется health check и может быть nil.
func New(
	cfg config.ServerConfig,
	docs handlers.DocumentService,
	hub *memory.Hub,
	db handlers.Pinger,
	version string,
	logger *slog.Logger,
) *Server {
	documentHandler := handlers.NewDocumentHandler(logger, docs)
	eventsHandler := handlers.NewEventsHandler(logger, hub, cfg.AllowedOrigins)
	healthHandler := handlers.NewHealthHandler(logger, db, version)

	s := &Server{
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	var save http.Handler = http.HandlerFunc(documentHandler.Save)
	if cfg.SaveRateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.SaveRateLimit, cfg.SaveRateWindow, logger)
		save = s.limiter.Middleware(save)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathHealth, healthHandler.Health)
	mux.HandleFunc("GET "+api.PathDocuments+"{id}", documentHandler.Get)
	mux.Handle("POST "+api.PathDocuments+"{id}/save", save)
	mux.HandleFunc("GET "+api.PathDocuments+"{id}/events", eventsHandler.Events)

	var handler http.Handler = mux
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logging(logger, api.PathHealth)(handler)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler корневой обработчик (для httptest)
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run принимает соединения до отмены ctx, затем корректно останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve как Run, но на готовом listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	s.http.BaseContext = func(net.Listener) context.Context { return ctx }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")

		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close освобождает фоновые ресурсы middleware. Serve вызывает его сам.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
