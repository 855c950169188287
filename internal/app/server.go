package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/docpipe/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/docpipe/internal/api/middlewares"
	"github.com/markdave123-py/docpipe/internal/config"
)

// Server exposes the HTTP trigger surface.
type Server struct {
	httpServer *http.Server
	runs       *handlers.RunHandler
	log        *slog.Logger
}

// NewServer builds and wires all routes. Runs started over HTTP live under ctx.
func NewServer(ctx context.Context, cfg config.ServerConfig, run Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	runs := handlers.NewRunHandler(ctx, handlers.RunFunc(run), logger.With("component", "api"))

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           newRouter(cfg.JWTSecret, runs),
			ReadHeaderTimeout: 10 * time.Second,
		},
		runs: runs,
		log:  logger,
	}
}

func newRouter(secret string, runs *handlers.RunHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", runs.Health)

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(secret))
			protected.Post("/runs", runs.StartRun)
			protected.Get("/runs/latest", runs.Latest)
		})
	})
	return r
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http.listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for an in-flight run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http.shutdown")
	err := s.httpServer.Shutdown(ctx)
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}
