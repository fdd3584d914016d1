package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dshills/smolvec/core"
	"github.com/dshills/smolvec/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Store is the vector store served by the API. *core.VectorStore satisfies it.
type Store interface {
	Add(ctx context.Context, id string, vector []float32, metadata json.RawMessage) error
	AddBatch(ctx context.Context, records []core.VectorRecord) error
	Get(ctx context.Context, id string) (core.VectorRecord, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, query []float32, k int) ([]core.QueryResult, error)
	Count(ctx context.Context) (int, error)
}

// Server represents the REST API server
type Server struct {
	store      Store
	router     *mux.Router
	httpServer *http.Server
	config     ServerConfig
	logger     *slog.Logger
	metrics    *observability.Metrics
	gatherer   prometheus.Gatherer
	limiter    *rate.Limiter
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// MaxBodyBytes limits request bodies; zero means unlimited
	MaxBodyBytes int64 `json:"max_body_bytes"`

	// MaxK is the largest k accepted by the query endpoint
	MaxK int `json:"max_k"`

	// RateLimit is the sustained request rate per second; zero disables limiting
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// MetricsPath serves Prometheus metrics when set
	MetricsPath string `json:"metrics_path"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    32 << 20,
		MaxK:            1000,
		MetricsPath:     "/metrics",
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records HTTP metrics into m and serves gatherer on the
// metrics path.
func WithMetrics(m *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// NewServer creates a new API server
func NewServer(store Store, config ServerConfig, opts ...Option) *Server {
	s := &Server{
		store:  store,
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = max(1, int(config.RateLimit))
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.loggingMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(s.maxBodyMiddleware)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Vector endpoints
	s.router.HandleFunc("/vectors", s.handleAddVector).Methods("POST")
	s.router.HandleFunc("/vectors/batch", s.handleAddVectorsBatch).Methods("POST")
	s.router.HandleFunc("/vectors/{id}", s.handleGetVector).Methods("GET")
	s.router.HandleFunc("/vectors/{id}", s.handlePutVector).Methods("PUT")
	s.router.HandleFunc("/vectors/{id}", s.handleDeleteVector).Methods("DELETE")

	// Search endpoints
	s.router.HandleFunc("/query", s.handleQuery).Methods("POST")

	// Stats endpoints
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	if s.config.MetricsPath != "" && s.gatherer != nil {
		s.router.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Documentation endpoints
	s.setupDocs()
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.httpServer.Addr
	s.logger.Info("starting smolvec API server", "addr", addr, "docs", "http://"+addr+"/docs")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Middleware functions
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && r.URL.Path != "/health" && !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimitRejectedTotal.Inc()
			}
			w.Header().Set("Retry-After", "1")
			s.respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// respondWithStoreError maps store errors to HTTP status codes
func (s *Server) respondWithStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		encErr *core.EncodingError
		decErr *core.DecodingError
	)

	switch {
	case errors.Is(err, core.ErrNotFound):
		s.respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrEmptyID), errors.As(err, &encErr):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrClosed):
		s.respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &decErr):
		s.logger.ErrorContext(r.Context(), "corrupt record", "key", decErr.Key, "error", decErr.Err)
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "store operation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// Error response helper
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ErrorResponse{Error: message})
}

// JSON response helper
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
