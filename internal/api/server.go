// Package api provides the HTTP server for nutrigen.
// It exposes the generation, credit, and log endpoints consumed by the
// mobile and web clients, plus a live progress SSE feed.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/nutrigen/nutrigen/internal/app/orchestrator"
	"github.com/nutrigen/nutrigen/internal/domain"
	"github.com/nutrigen/nutrigen/internal/infra/surface"
)

// Server is the nutrigen HTTP API server.
type Server struct {
	svc            *orchestrator.Service
	store          domain.GenerationStore
	profiles       domain.ProfileStore
	metricsEnabled bool
	progressHub    *ProgressHub
	toasts         *surface.RecordingNotifier
	limiter        *userLimiter
}

// NewServer creates a new API server.
func NewServer(svc *orchestrator.Service, store domain.GenerationStore, profiles domain.ProfileStore) *Server {
	return &Server{svc: svc, store: store, profiles: profiles}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetProgressHub sets the live progress SSE hub.
func (s *Server) SetProgressHub(h *ProgressHub) { s.progressHub = h }

// SetToasts exposes recent toasts to reconnecting clients.
func (s *Server) SetToasts(n *surface.RecordingNotifier) { s.toasts = n }

// ProgressHub returns the live progress hub (for broadcasting snapshots).
func (s *Server) ProgressHub() *ProgressHub { return s.progressHub }

// SetRateLimit caps generation requests per user per minute. Zero disables
// the limiter.
func (s *Server) SetRateLimit(perMinute int) {
	if perMinute <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = newUserLimiter(perMinute)
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	// Health check for deploy targets
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "nutrigen is running",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": "0.1.0",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/features", s.handleListFeatures)
		r.Post("/generations/{feature}", s.handleGenerate)
		r.Get("/generations", s.handleListLogs)
		r.Get("/generations/{id}", s.handleGetLog)
		r.Get("/credits", s.handleCredits)
		r.Post("/credits/grant", s.handleGrantCredits)
		r.Get("/progress", s.handleProgress)
		r.Get("/toasts", s.handleToasts)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Live progress SSE feed for the generation loading screens
	if s.progressHub != nil {
		r.Get("/api/progress/live", s.progressHub.HandleProgressSSE)
	}

	return r
}

// userID resolves the calling user. Identity is established upstream by
// the deployment's auth proxy; the header carries only the verified ID.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// requireUser extracts the user ID or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return "", false
	}
	return uid, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Per-user rate limiting ─────────────────────────────────────────────────
// Generation requests are expensive; each user gets a token bucket sized to
// one minute of their allowance.

type userLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newUserLimiter(perMinute int) *userLimiter {
	return &userLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
	}
}

func (l *userLimiter) allow(userID string) bool {
	l.mu.Lock()
	b, ok := l.buckets[userID]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[userID] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
