package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/PiloTracer/aiagents"
)

// Server exposes the ingestion pipeline over HTTP.
type Server struct {
	service  *aiagents.Service
	auth     Authorizer
	validate *validator.Validate
	router   *http.ServeMux
	server   *http.Server
	logger   *slog.Logger
}

// New creates a server for the given service. A nil authorizer allows
// every request.
func New(service *aiagents.Service, addr string, auth Authorizer) *Server {
	if auth == nil {
		auth = AllowAll{}
	}

	s := &Server{
		service:  service,
		auth:     auth,
		validate: validator.New(),
		logger:   slog.Default().With("component", "http-server"),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // synchronous ingestion can run long
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rag/ingest", s.handleIngest)
	mux.HandleFunc("GET /rag/jobs", s.handleJobs)
	return mux
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.authMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	return handler
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Authorize(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"method", r.Method, "path", r.URL.Path,
			"remote", r.RemoteAddr, "duration", time.Since(start))
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					"method", r.Method, "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
