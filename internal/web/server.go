// Package web provides the HTTP server and routing
package web

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mediabandit/internal/admin"
	"mediabandit/internal/config"
	"mediabandit/internal/database"
	"mediabandit/internal/metrics"
	"mediabandit/internal/pending"
	"mediabandit/internal/web/handlers"
)

const (
	// Submission rate limit across all API callers
	submitRequestsPerSecond = 5
	submitBurstSize         = 10
)

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	handlers    *handlers.Handlers
	adminToken  string
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, submitter handlers.Submitter, adminCtrl *admin.Controller, store *pending.Store, db *database.DB, reg *metrics.Registry) *Server {
	h := handlers.NewHandlers(submitter, adminCtrl, store, db, reg)

	s := &Server{
		handlers:    h,
		adminToken:  cfg.AdminAccessToken,
		rateLimiter: rate.NewLimiter(rate.Limit(submitRequestsPerSecond), submitBurstSize),
		logger:      slog.Default(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /metrics", h.Metrics)
	mux.HandleFunc("GET /api/runtime", h.Runtime)
	mux.HandleFunc("GET /api/stats", h.Stats)
	mux.HandleFunc("GET /api/stats/user", h.UserStats)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("POST /api/download", s.withRateLimit(h.SubmitDownload))
	mux.HandleFunc("POST /api/download/confirm", s.withRateLimit(h.ConfirmDownload))
	mux.HandleFunc("POST /api/pending", s.withRateLimit(h.IssuePendingToken))

	// Administrative routes require the access token
	mux.HandleFunc("POST /api/admin/cancel-user", s.withAuth(h.CancelUserDownloads))
	mux.HandleFunc("DELETE /api/admin/pending/{token}", s.withAuth(h.DeletePendingToken))
	mux.HandleFunc("POST /api/admin/pending/flush", s.withAuth(h.FlushPendingTokens))
	mux.HandleFunc("POST /api/admin/queue/clear", s.withAuth(h.ClearQueue))

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // submissions block until the download finishes
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the routed handler for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// withRateLimit rejects submissions once the process-wide budget is spent
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// withAuth requires the configured bearer token on administrative routes
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			http.Error(w, "Admin API is disabled", http.StatusForbidden)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
