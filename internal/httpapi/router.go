package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/logger"
	"github.com/dshills/mindmup-mcp/internal/metrics"
)

// Status reports the readiness of the tool layer
type Status interface {
	Ready() bool
	CacheEntries() int
}

// Option configures the router
type Option func(*options)

type options struct {
	sse  *server.SSEServer
	name string
	now  func() time.Time
}

// WithSSE mounts the MCP SSE transport at /sse and /message
func WithSSE(sse *server.SSEServer) Option {
	return func(o *options) { o.sse = sse }
}

// WithServerName sets the server name reported by /ping
func WithServerName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewRouter builds the side HTTP surface: /ping, /health, /metrics and,
// when configured, the MCP SSE endpoints.
func NewRouter(status Status, log *zap.Logger, opts ...Option) http.Handler {
	o := options{name: "mindmup-mcp", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(metrics.Middleware())

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"time":   o.now().UTC().Format(time.RFC3339),
			"server": o.name,
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{
			"time":                o.now().UTC().Format(time.RFC3339),
			"clients_initialized": status.Ready(),
			"cache_entries":       status.CacheEntries(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	if o.sse != nil {
		r.Handle("/sse", o.sse.SSEHandler())
		r.Handle("/message", o.sse.MessageHandler())
	}

	return r
}

// requestLogger logs one line per request with the chi request id
func requestLogger(base *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := base.With(zap.String("request_id", chimiddleware.GetReqID(r.Context())))
			ctx := logger.ContextWithLogger(r.Context(), reqLog)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLog.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server runs the side HTTP surface
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates an HTTP server for handler on addr
func NewServer(addr string, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.srv.Addr
}

// ListenAndServe blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
