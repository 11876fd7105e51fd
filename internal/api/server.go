package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/log"
	"github.com/ferrite-ai/ferrite/internal/session"
	"github.com/ferrite-ai/ferrite/internal/turn"
)

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	Logger      log.Logger       // Required
	Registry    *turn.Registry   // Required
	Engines     *engine.Manager  // Required
	Sessions    *session.Store   // Optional: nil disables list/messages routes
	Pool        *pgxpool.Pool    // Optional: nil disables pool ping in /ready
	CORSOrigins []string         // Allowed origins for CORS
	TrustProxy  bool             // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int              // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON/SSE HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("turn registry is required")
	}
	if cfg.Engines == nil {
		return nil, errors.New("engine manager is required")
	}

	logger := cfg.Logger.With("component", "api")

	ch := &chatHandler{registry: cfg.Registry, engines: cfg.Engines, logger: logger}
	sh := &sessionHandler{registry: cfg.Registry, store: cfg.Sessions, logger: logger}
	ah := &adminHandler{engines: cfg.Engines, logger: logger}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("GET /api/v1/chat/stream", ch.stream)

	// Session lifecycle
	mux.HandleFunc("POST /api/v1/sessions/{id}/seal", sh.seal)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.deleteSession)

	// Browsing endpoints need the store.
	if cfg.Sessions != nil {
		mux.HandleFunc("GET /api/v1/sessions", sh.listSessions)
		mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.listMessages)
	}

	// Maintenance
	mux.HandleFunc("POST /api/v1/reload", ah.reload)
	mux.HandleFunc("GET /api/v1/upstream-status", ah.upstreamStatus)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes; CORS before RateLimit so preflight OPTIONS gets headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
