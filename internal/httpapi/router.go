// Package httpapi exposes Concord's HTTP (JSON) and WebSocket surfaces:
// auth, chat, model catalog, file, and Google Drive endpoints over
// net/http's ServeMux, and the real-time /ws channel over
// gorilla/websocket. No router dependency appears anywhere in the example
// corpus, so plain http.ServeMux is used throughout, matching the
// teacher's own http_server.go.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/concordhq/concord/internal/auth"
	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/internal/ratelimit"
	"github.com/concordhq/concord/internal/session"
	"github.com/concordhq/concord/internal/storage"
	"github.com/concordhq/concord/internal/tools/drive"
)

// Deps aggregates every component the HTTP/WS surface calls into.
// GoogleOAuth/DriveTokens/DriveFacades are nil when Drive credentials are
// not configured, and Logger, Metrics and RateLimiter may be left nil; the
// remaining fields are required.
type Deps struct {
	Auth         *auth.Service
	Coordinator  *session.Coordinator
	Stores       storage.StoreSet
	Providers    *providers.Registry
	DriveFacades DriveFacadeFactory
	DriveTokens  DriveTokenStore
	GoogleOAuth  auth.OAuthProvider
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	RateLimiter  *ratelimit.Limiter
}

// DriveFacadeFactory constructs a per-user Drive facade from that user's
// stored OAuth token. Drive clients are never shared across users; the
// factory is the only place a facade is created.
type DriveFacadeFactory func(userID string) (drive.Facade, error)

// NewRouter builds the complete HTTP mux: health/metrics endpoints, the
// JSON API under /api/*, and the WebSocket endpoint at /ws.
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handleHealthz)

	h := &handlers{deps: deps}

	mux.HandleFunc("/api/auth/login", h.login)
	mux.HandleFunc("/api/chat/message", h.requireAuth(h.postMessage))
	mux.HandleFunc("/api/chat/sessions", h.requireAuth(h.listSessions))
	mux.HandleFunc("/api/chat/sessions/", h.requireAuth(h.sessionMessages))
	mux.HandleFunc("/api/models", h.requireAuth(h.listModels))
	mux.HandleFunc("/api/files", h.requireAuth(h.filesCollection))
	mux.HandleFunc("/api/files/", h.requireAuth(h.filesItem))
	mux.HandleFunc("/api/google/callback", h.googleCallback)
	mux.HandleFunc("/api/google/drive/", h.requireAuth(h.driveProxy))

	ws := newWSHandler(deps)
	mux.Handle("/ws", ws)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = deps.Metrics.HTTPMiddleware(handler)
	}
	if deps.Logger != nil {
		handler = deps.Logger.HTTPMiddleware(handler)
	}
	return handler
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type handlers struct {
	deps Deps
}

// requireAuth wraps an authenticated endpoint, delegating to the shared
// auth middleware and rejecting the request before it ever reaches the
// handler if no user resolves.
func (h *handlers) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	var logger *slog.Logger
	if h.deps.Logger != nil {
		logger = h.deps.Logger.Underlying()
	}
	mw := auth.Middleware(h.deps.Auth, logger)
	return func(w http.ResponseWriter, r *http.Request) {
		mw(http.HandlerFunc(next)).ServeHTTP(w, r)
	}
}

// rateLimited reports whether the request was rejected for exceeding the
// per-user request rate, writing a 429 response if so.
func (h *handlers) rateLimited(w http.ResponseWriter, r *http.Request, key string) bool {
	if h.deps.RateLimiter == nil {
		return false
	}
	if h.deps.RateLimiter.Allow(key) {
		return false
	}
	wait := h.deps.RateLimiter.WaitTime(key)
	w.Header().Set("Retry-After", formatRetryAfter(wait))
	writeError(w, http.StatusTooManyRequests, "RateLimited", "too many requests")
	return true
}

func formatRetryAfter(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
