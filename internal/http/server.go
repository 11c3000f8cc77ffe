// Package http exposes the transaction service as a JSON API.
package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"kharcha/internal/cache"
	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/middleware/ratelimit"
	"kharcha/internal/middleware/security"
	"kharcha/internal/middleware/trace"
	"kharcha/internal/parser"
	"kharcha/internal/services"
)

// Request body limits.
const (
	maxUploadBytes = 5 << 20
	maxJSONBytes   = 64 << 10
)

// TransactionService is what the handlers need from services.TransactionService.
type TransactionService interface {
	AddManual(ctx context.Context, in services.ManualInput) (core.Transaction, error)
	ParseVoice(text string) (parser.Draft, error)
	SaveDraft(ctx context.Context, d parser.Draft) (core.Transaction, error)
	ImportCSV(ctx context.Context, r io.Reader) (services.ImportResult, error)
	List(ctx context.Context) ([]core.Transaction, error)
	Dashboard(ctx context.Context) (core.Summary, error)
	Categories() []string
	Reset(ctx context.Context) error
}

var _ TransactionService = (*services.TransactionService)(nil)

type Config struct {
	Addr               string
	RateLimitPerMinute int
	// Ready reports whether the backing store can serve requests. Nil means
	// always ready.
	Ready func(ctx context.Context) error
	// Caches, when set, is swept periodically and stopped on Shutdown.
	Caches  *cache.Manager
	Metrics *metrics.Metrics
	Logger  *applog.Logger
}

type Server struct {
	http.Server
	svc      TransactionService
	ready    func(ctx context.Context) error
	validate *validator.Validate
	limiter  *ratelimit.Limiter
	detector *security.Detector
	caches   *cache.Manager
	metrics  *metrics.Metrics
	logger   *applog.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc TransactionService) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	rl := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		rl.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		svc:      svc,
		ready:    cfg.Ready,
		validate: newValidator(),
		limiter:  ratelimit.NewLimiter(rl),
		detector: security.NewDetector(),
		caches:   cfg.Caches,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
	if s.caches != nil {
		s.caches.StartCleanup(10 * time.Minute)
	}

	mux := http.NewServeMux()
	writes := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)
	write := func(h http.HandlerFunc) http.Handler { return writes(h) }

	mux.Handle("POST /api/transactions", write(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.Handle("POST /api/transactions/upload", write(s.handleUpload))
	mux.Handle("POST /api/voice/parse", write(s.handleParseVoice))
	mux.Handle("POST /api/voice/save", write(s.handleSaveVoice))
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.Handle("POST /api/reset", write(s.handleReset))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var handler http.Handler = mux
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP, s.metrics).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info("HTTP server shutting down", applog.FieldOperation, applog.OpShutdown)
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	_, _ = w.Write([]byte("ready"))
}
