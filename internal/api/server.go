// Package api serves the network mirror: a snapshot of the current
// navigation state and a stream of changes as they happen.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/maildeck/maildeck/internal/bus"
	"github.com/maildeck/maildeck/internal/config"
	"github.com/maildeck/maildeck/internal/nav"
)

// keepaliveInterval paces SSE comment lines so idle streams survive proxies
// and half-dead connections get noticed.
const keepaliveInterval = 15 * time.Second

// Server is the HTTP face of the browser. It holds a read-only bus handle
// and nothing else that could mutate navigation state: connections observe,
// they never steer.
type Server struct {
	cfg    *config.Config
	bus    *bus.Bus[nav.Event]
	logger *slog.Logger
	router chi.Router
	server *http.Server
}

// NewServer creates the mirror server over b.
func NewServer(cfg *config.Config, b *bus.Bus[nav.Event], logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		bus:    b,
		logger: logger.With("component", "api"),
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)

	// The stream stays open indefinitely, so it lives outside the request
	// timeout that guards everything else.
	r.Get("/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Get("/", s.handleIndex)
		r.Get("/health", s.handleHealth)
		r.Get("/api/state", s.handleState)
	})

	return r
}

// Start begins listening. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.Port))

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: /events holds its response open for the life
		// of the subscription.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting view server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down view server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
