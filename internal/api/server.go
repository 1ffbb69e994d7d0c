// Package api serves the HTTP surface: the SSE chat endpoint, transcript
// and suggestion reads, the model catalog, and health probes.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliolabs/clio/internal/auth"
	"github.com/cliolabs/clio/internal/log"
	"github.com/cliolabs/clio/internal/model"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Agent       TurnRunner         // Required
	Auth        auth.Authenticator // Required
	Chats       ChatStore          // Required
	Suggestions SuggestionLister   // Required
	Pool        *pgxpool.Pool      // Optional: nil disables DB checks in /ready
	CORSOrigins []string           // Allowed origins for CORS
	TrustProxy  bool               // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int                // Rate limiter burst per IP (0 = default 60)
	IsDev       bool               // Disables HSTS
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("api: turn runner is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("api: authenticator is required")
	}
	if cfg.Chats == nil {
		return nil, errors.New("api: chat store is required")
	}
	if cfg.Suggestions == nil {
		return nil, errors.New("api: suggestion lister is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{
		agent:  cfg.Agent,
		chats:  cfg.Chats,
		auth:   cfg.Auth,
		logger: logger,
	}
	sh := &suggestionsHandler{
		docs:   cfg.Suggestions,
		auth:   cfg.Auth,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("DELETE /api/chat", ch.delete)
	mux.HandleFunc("GET /api/chat/{id}", ch.get)
	mux.HandleFunc("GET /api/suggestions", sh.list)
	mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.All(), logger)
	})

	// Rate limiter: per-IP token bucket (1 token/sec refill).
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log
	// attributes. CORS precedes RateLimit so preflight OPTIONS gets proper
	// CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
