// Package api wires the handlers package onto a mux.Router and owns the
// HTTP server's lifecycle, following the teacher's api/server.go shape.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vexxhost/batchd/api/handlers"
)

// Config contains server configuration.
type Config struct {
	Port        int
	AuthEnabled bool
	AuthToken   string
	Debug       bool
}

// Server is the batchd client batch protocol's HTTP realization.
type Server struct {
	config   *Config
	router   *mux.Router
	handlers *handlers.Handlers
	failover handlers.FailoverStatus
}

// NewServer constructs a Server over an already-wired Handlers bundle.
// failoverStatus reports whether this process currently holds the
// lockfile-backed active role; cmd/batchd/main.go supplies it as a
// closure over the lockfile.Lock it owns.
func NewServer(config *Config, h *handlers.Handlers, failoverStatus handlers.FailoverStatus) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		config:   config,
		router:   mux.NewRouter(),
		handlers: h,
		failover: failoverStatus,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes registers every operation spec.md section 6 names for the
// client batch protocol.
func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware)
	if s.config.Debug {
		s.router.Use(s.loggingMiddleware)
	}

	// A preflight OPTIONS request matches no GET/POST route, and mux runs
	// middleware only on a matched route; this catch-all route lets
	// corsMiddleware answer it.
	s.router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/ready", s.handlers.Ready).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Jobs
	v1.HandleFunc("/jobs", s.requireAuth(s.handlers.Queue)).Methods("POST")
	v1.HandleFunc("/jobs", s.requireAuth(s.handlers.SelectJob)).Methods("GET")
	v1.HandleFunc("/jobs/{id}", s.requireAuth(s.handlers.StatJob)).Methods("GET")
	v1.HandleFunc("/jobs/{id}", s.requireAuth(s.handlers.Delete)).Methods("DELETE")
	v1.HandleFunc("/jobs/{id}/hold", s.requireAuth(s.handlers.Hold)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/release", s.requireAuth(s.handlers.Release)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/signal", s.requireAuth(s.handlers.Signal)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/rerun", s.requireAuth(s.handlers.Rerun)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/run", s.requireAuth(s.handlers.Run)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/obit", s.requireAuth(s.handlers.Obit)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/modify", s.requireAuth(s.handlers.Modify)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/move", s.requireAuth(s.handlers.Move)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/message", s.requireAuth(s.handlers.Message)).Methods("POST")
	v1.HandleFunc("/jobs/{id}/track", s.requireAuth(s.handlers.Track)).Methods("GET")
	v1.HandleFunc("/jobs/{id}/stage", s.requireAuth(s.handlers.Stage)).Methods("POST")
	v1.HandleFunc("/jobs/{a}/order/{b}", s.requireAuth(s.handlers.Order)).Methods("POST")

	// Nodes and queues
	v1.HandleFunc("/nodes", s.requireAuth(s.handlers.StatNode)).Methods("GET")
	v1.HandleFunc("/nodes/{name}", s.requireAuth(s.handlers.StatNode)).Methods("GET")
	v1.HandleFunc("/manager/nodes", s.requireAuth(s.handlers.Manager)).Methods("POST")
	v1.HandleFunc("/queues/{name}/jobs", s.requireAuth(s.handlers.StatQue)).Methods("GET")

	// Reservations
	v1.HandleFunc("/reservations", s.requireAuth(s.handlers.ResvSub)).Methods("POST")
	v1.HandleFunc("/reservations/{id}", s.requireAuth(s.handlers.StatResv)).Methods("GET")
	v1.HandleFunc("/reservations/{id}", s.requireAuth(s.handlers.DeleteReservation)).Methods("DELETE")
	v1.HandleFunc("/reservations/{id}/modify", s.requireAuth(s.handlers.ModifyReservation)).Methods("POST")

	// Server-wide and scheduler/failover
	v1.HandleFunc("/server", s.requireAuth(s.handlers.StatSvr)).Methods("GET")
	v1.HandleFunc("/scheduler/{partition}/cycle", s.requireAuth(s.handlers.Connect)).Methods("POST")
	v1.HandleFunc("/scheduler/{partition}/end", s.requireAuth(s.handlers.Disconnect)).Methods("POST")
	v1.HandleFunc("/failover", s.requireAuth(s.handlers.Failover(s.failover))).Methods("POST")
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		fields := log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status_code": wrapped.statusCode,
			"duration_ms": duration.Milliseconds(),
			"remote":      r.RemoteAddr,
		}
		switch {
		case wrapped.statusCode >= 500:
			log.WithFields(fields).Error("api request completed")
		case wrapped.statusCode >= 400:
			log.WithFields(fields).Warn("api request completed")
		default:
			log.WithFields(fields).Info("api request completed")
		}
	})
}

// requireAuth gates a handler behind a static bearer token, the simplest
// form of the teacher's requireAuth that fits batchd's single-token
// config.AuthToken instead of a full login/session subsystem.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.AuthEnabled {
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			s.writeUnauthorized(w, "missing or malformed authorization header")
			return
		}
		if authHeader[7:] != s.config.AuthToken {
			s.writeUnauthorized(w, "invalid or expired token")
			return
		}
		next(w, r)
	}
}

func (s *Server) writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Start runs the server until ctx is canceled, then shuts it down within
// a 5 second grace period, matching the teacher's Server.Start.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", s.config.Port).Info("starting batchd api server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("api server failed to start")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("shutting down batchd api server gracefully")
	return httpServer.Shutdown(shutdownCtx)
}
