// Package http exposes the local JSON API that clients on the same
// machine talk to. Writes go through the stores so they work offline,
// reads come straight from the local collections.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gagebu/internal/cache"
	"gagebu/internal/netmon"
	"gagebu/internal/queue"
	"gagebu/internal/store"
	"gagebu/internal/suggest"
	"gagebu/internal/syncer"
)

type Server struct {
	http.Server
	monitor      *netmon.Monitor
	engine       *syncer.Engine
	transactions *store.TransactionStore
	categories   *store.CategoryStore
	cards        *store.CardStore
	pending      *queue.Queue
	suggestCache *cache.Cache[suggest.Result]
	rateLimiter  *rateLimiter

	shutdownOnce sync.Once
}

type Deps struct {
	Monitor      *netmon.Monitor
	Engine       *syncer.Engine
	Transactions *store.TransactionStore
	Categories   *store.CategoryStore
	Cards        *store.CardStore
	Pending      *queue.Queue
	CacheSize    int
	CacheTTL     time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	cacheSize := deps.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cacheTTL := deps.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		monitor:      deps.Monitor,
		engine:       deps.Engine,
		transactions: deps.Transactions,
		categories:   deps.Categories,
		cards:        deps.Cards,
		pending:      deps.Pending,
		suggestCache: cache.New[suggest.Result](cacheSize, cacheTTL),
		rateLimiter:  newRateLimiter(),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("GET /status", s.withMiddleware(s.handleStatus))

	mux.HandleFunc("GET /transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("POST /transactions/refresh", s.withMiddleware(s.handleRefreshTransactions))
	mux.HandleFunc("PUT /transactions/{id}", s.withMiddleware(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))
	mux.HandleFunc("PATCH /transactions/{id}/favorite", s.withMiddleware(s.handleToggleFavorite))

	mux.HandleFunc("GET /categories", s.withMiddleware(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.withMiddleware(s.handleCreateCategory))
	mux.HandleFunc("PUT /categories/{id}", s.withMiddleware(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.withMiddleware(s.handleDeleteCategory))

	mux.HandleFunc("GET /cards", s.withMiddleware(s.handleListCards))
	mux.HandleFunc("POST /cards", s.withMiddleware(s.handleCreateCard))
	mux.HandleFunc("DELETE /cards/{id}", s.withMiddleware(s.handleDeleteCard))

	mux.HandleFunc("GET /suggest", s.withMiddleware(s.handleSuggest))
	mux.HandleFunc("POST /sync/flush", s.withMiddleware(s.handleFlush))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.DebugContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) isOnline() bool {
	if s.monitor == nil {
		return true
	}
	return s.monitor.Status().IsOnline
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := netmon.Status{IsOnline: true}
	if s.monitor != nil {
		status = s.monitor.Status()
	}

	resp := struct {
		IsOnline            bool  `json:"is_online"`
		IsInternetReachable *bool `json:"is_internet_reachable"`
		PendingMutations    int   `json:"pending_mutations"`
		Flushing            bool  `json:"flushing"`
		LoadingTransactions bool  `json:"loading_transactions"`
	}{
		IsOnline:            status.IsOnline,
		IsInternetReachable: status.IsInternetReachable,
		PendingMutations:    s.pending.Len(),
		Flushing:            s.engine.IsFlushing(),
		LoadingTransactions: s.transactions.IsLoading(),
	}
	writeJSON(w, http.StatusOK, resp)
}
