// Package server hosts the read-only status API used by operators to
// watch long-running jobs. It never mutates job state; all writes go
// through the engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/forgelab/jobmill/internal/server/handlers"
	"github.com/forgelab/jobmill/internal/server/middleware"
	"github.com/forgelab/jobmill/pkg/jobstore"
)

// Options configures a Server.
type Options struct {
	Host            string
	Port            int
	Store           *jobstore.Store
	Logger          *zap.Logger
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	host            string
	port            int
	router          chi.Router
	log             *zap.Logger
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		host:            opts.Host,
		port:            opts.Port,
		log:             log,
		shutdownTimeout: opts.ShutdownTimeout,
	}
	s.router = s.routes(opts.Store)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

func (s *Server) routes(store *jobstore.Store) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.log))
	r.Use(chimw.Recoverer)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	health := &handlers.HealthHandler{}
	if store != nil {
		health.Ping = func(ctx context.Context) error {
			return store.DB().PingContext(ctx)
		}
	}
	r.Method(http.MethodGet, "/health", health)

	jobs := &handlers.JobsHandler{Store: store, Log: s.log}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", jobs.List)
		r.Get("/jobs/{id}", jobs.Get)
	})
	return r
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Port() int {
	return s.port
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status API listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
