// Package api serves the engine's control and telemetry surface over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/engine"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

const shutdownTimeout = 5 * time.Second

// Engine is the part of the engine the HTTP surface drives.
type Engine interface {
	Snapshot() engine.Snapshot
	Telemetry(track int) (engine.Telemetry, error)
	Status() session.Status

	Bind(track int, deviceID uint32, class tracks.DeviceClass) error
	Unbind(track int) error
	SetBaseline(track int, baseline float64) error
	Resize(n int) error

	LoadWorkout(w workout.Workout) error
	Workout() workout.Workout

	Start() error
	Pause() error
	Resume() error
	Stop() error
	Skip() error
}

var _ Engine = (*engine.Engine)(nil)

// Server exposes an Engine over HTTP.
type Server struct {
	engine   Engine
	logger   *log.Logger
	commands *rate.Limiter
	router   chi.Router
}

// NewServer creates a Server for e. Session commands are limited to a few per
// second so a misbehaving client cannot flood the command queue.
func NewServer(e Engine, logger *log.Logger) *Server {
	if e == nil {
		panic("Server: engine cannot be nil")
	}
	if logger == nil {
		panic("Server: logger cannot be nil")
	}
	s := &Server{
		engine:   e,
		logger:   logger,
		commands: rate.NewLimiter(rate.Limit(10), 5),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/snapshot", s.handleSnapshot)

	r.Route("/tracks", func(r chi.Router) {
		r.Get("/", s.handleTracks)
		r.Post("/resize", s.handleResize)
		r.Route("/{track}", func(r chi.Router) {
			r.Get("/", s.handleTrack)
			r.Put("/binding", s.handleBind)
			r.Delete("/binding", s.handleUnbind)
			r.Put("/baseline", s.handleBaseline)
		})
	})

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleStatus)
		r.Post("/{command}", s.handleCommand)
	})

	r.Get("/workout", s.handleGetWorkout)
	r.Put("/workout", s.handlePutWorkout)
	r.Get("/workouts", s.handleCatalog)
	r.Post("/workouts/{name}/load", s.handleLoadCatalog)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return ServeHandler(ctx, addr, s, s.logger)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return serve(ctx, ln, s, s.logger)
}

// ServeHandler serves h on addr until ctx is done.
func ServeHandler(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	return serve(ctx, ln, h, logger)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("API: listening on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("API: Error shutting down: %v", err)
	}
	<-errCh
	logger.Printf("API: Shutdown complete")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/metrics" {
			return
		}
		s.logger.Printf("API: %s %s -> %d (%v)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond))
	})
}
