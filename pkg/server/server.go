// Package server exposes the application commands over HTTP and streams
// batch events to websocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrhq/catalogsync/pkg/app"
	"github.com/entrhq/catalogsync/pkg/browser"
	"github.com/entrhq/catalogsync/pkg/catalog"
	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/logging"
	"github.com/entrhq/catalogsync/pkg/store"
	"github.com/entrhq/catalogsync/pkg/types"
)

// Service is the command surface the server drives. *app.App implements it.
type Service interface {
	StartSession(ctx context.Context) (browser.SessionInfo, error)
	CheckAuthenticated(ctx context.Context) bool
	CloseSession() bool
	ProcessItems(items []types.Item, source string) (string, error)
	Pause() bool
	Resume() bool
	Stop() bool
	Status() app.Status
	History(ctx context.Context, limit int) ([]store.Run, error)
	RunResults(ctx context.Context, runID string) ([]types.ItemResult, error)
	RetryRun(ctx context.Context, runID string) (string, error)
	Subscribe(buffer int) (<-chan *types.Event, func())
}

// Server is the HTTP command layer.
type Server struct {
	svc     Service
	cfg     config.ServerConfig
	catalog config.CatalogConfig
	root    *catalog.Root
	logger  *logging.Logger
	router  chi.Router
}

// New creates a server over svc. cat configures item files loaded by path in
// batch requests; such files must live under cat.Root.
func New(svc Service, cfg config.ServerConfig, cat config.CatalogConfig) *Server {
	s := &Server{
		svc:     svc,
		cfg:     cfg,
		catalog: cat,
		logger:  logging.NewLogger("server"),
	}
	root, err := catalog.NewRoot(cat.Root)
	if err != nil {
		s.logger.Warnf("loading item files by path is disabled: %v", err)
	} else {
		s.root = root
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.logMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/events", s.handleEvents)

	r.Route("/session", func(r chi.Router) {
		r.Post("/start", s.handleStartSession)
		r.Get("/check", s.handleCheckSession)
		r.Post("/close", s.handleCloseSession)
	})
	r.Route("/batch", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Post("/pause", s.handleControl(s.svc.Pause))
		r.Post("/resume", s.handleControl(s.svc.Resume))
		r.Post("/stop", s.handleControl(s.svc.Stop))
		r.Get("/status", s.handleStatus)
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}/results", s.handleRunResults)
		r.Post("/{id}/retry", s.handleRetry)
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				respondError(w, http.StatusInternalServerError, errors.New("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
