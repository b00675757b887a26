package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/matijazezelj/peerscope/internal/inventory"
	"github.com/matijazezelj/peerscope/internal/metrics"
	"github.com/matijazezelj/peerscope/internal/refresh"
	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/matijazezelj/peerscope/internal/ui"
	"github.com/matijazezelj/peerscope/pkg/models"
)

// maxBodyBytes caps request bodies on mutating methods. Inline inventories
// can be large, so this is well above what refresh triggers need.
const maxBodyBytes = 8 << 20

// Server is the peerscope HTTP server providing the REST API and web UI.
type Server struct {
	store      *inventory.SQLiteStore
	engine     topology.Engine
	refresher  *refresh.Refresher
	controller *topology.Controller
	metrics    *metrics.Metrics
	logger     *slog.Logger
	listen     string
	readOnly   bool
	apiToken   string
	corsOrigin string
	srv        *http.Server

	// rate limiter state
	limiters sync.Map // map[string]*ipLimiter
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Options holds the listener settings of the server.
type Options struct {
	Listen     string
	ReadOnly   bool
	APIToken   string
	CORSOrigin string
}

// New creates a new Server. refresher and m may be nil. The server keeps a
// focus controller over the last topology the refresher built; seed it with
// Controller().Load when the store already holds a snapshot.
func New(store *inventory.SQLiteStore, engine topology.Engine, refresher *refresh.Refresher, m *metrics.Metrics, logger *slog.Logger, opts Options) *Server {
	ctrl := topology.NewController(models.Topology{})
	if refresher != nil {
		refresher.OnTopology(ctrl.Load)
	}
	return &Server{
		store:      store,
		engine:     engine,
		refresher:  refresher,
		controller: ctrl,
		metrics:    m,
		logger:     logger,
		listen:     opts.Listen,
		readOnly:   opts.ReadOnly,
		apiToken:   opts.APIToken,
		corsOrigin: opts.CORSOrigin,
	}
}

// Controller returns the focus controller behind the topology endpoints.
func (s *Server) Controller() *topology.Controller {
	return s.controller
}

// securityHeaders adds standard security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		next.ServeHTTP(w, r)
	})
}

// limitBody caps request body size on mutating methods.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter limits API requests to 10/sec burst 20 per client IP.
func (s *Server) rateLimiter(ctx context.Context, next http.Handler) http.Handler {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pruneLimiters(10 * time.Minute)
			}
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		ip, _, _ := net.SplitHostPort(r.RemoteAddr)
		if ip == "" {
			ip = r.RemoteAddr
		}

		val, _ := s.limiters.LoadOrStore(ip, &ipLimiter{
			limiter:  rate.NewLimiter(10, 20),
			lastSeen: time.Now(),
		})
		il := val.(*ipLimiter)
		il.lastSeen = time.Now()

		if !il.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) pruneLimiters(maxIdle time.Duration) {
	s.limiters.Range(func(key, value any) bool {
		il := value.(*ipLimiter)
		if time.Since(il.lastSeen) > maxIdle {
			s.limiters.Delete(key)
		}
		return true
	})
}

// corsMiddleware adds CORS headers when a cors_origin is configured.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" && strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware returns a handler that checks for a valid bearer token
// on /api/ routes when an API token is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only protect API routes (not static UI, metrics or healthz)
		if s.apiToken != "" && strings.HasPrefix(r.URL.Path, "/api/") {
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if token == auth || subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request counts and latency per route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		s.metrics.ObserveHTTPRequest(r.Method, path, rec.status, time.Since(start))
	})
}

// Handler builds the full middleware chain around the route mux.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, s)

	// Serve embedded static UI files
	mux.Handle("GET /", http.FileServer(http.FS(ui.StaticFiles())))

	// Middleware chain: security headers → body limit → CORS → rate limit → auth → metrics → mux
	var handler http.Handler = mux
	handler = s.metricsMiddleware(handler)
	handler = s.authMiddleware(handler)
	handler = s.rateLimiter(ctx, handler)
	handler = s.corsMiddleware(handler)
	handler = limitBody(handler)
	handler = securityHeaders(handler)
	return handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.listen,
		Handler:      s.Handler(ctx),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", "listen", s.listen, "read_only", s.readOnly)
	if s.apiToken != "" {
		s.logger.Info("API authentication enabled")
	} else {
		s.logger.Warn("API authentication disabled (set server.api_token to enable)")
	}
	fmt.Printf("peerscope server running at http://localhost%s\n", s.listen)

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
