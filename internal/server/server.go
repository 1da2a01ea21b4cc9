// Package server implements the HTTP server that exposes document ingestion
// and question answering as a REST API.
// The server is started by the `crewmate serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AniketAslaliya/crewmate-go/internal/ingestion"
	"github.com/AniketAslaliya/crewmate-go/internal/logging"
	"github.com/AniketAslaliya/crewmate-go/internal/rag"
	"github.com/AniketAslaliya/crewmate-go/internal/store"
)

// New constructs a Server from the provided asker, ingester, and config.
// registry may be nil, which disables thread ownership checks.
func New(ask asker, ing ingester, registry store.ThreadRegistry, cfg *Config) (*Server, error) {
	if ask == nil {
		return nil, fmt.Errorf("server: asker must not be nil")
	}
	if ing == nil {
		return nil, fmt.Errorf("server: ingester must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full escalation chain (RAG, general
		// knowledge, web search), each of which may hit a slow backend.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 2 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	registerer := cfg.MetricsRegistry
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		asker:    ask,
		ingester: ing,
		registry: registry,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(registerer),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", rl.middleware(http.HandlerFunc(s.handleAsk)))
	mux.Handle("POST /api/ingest", rl.middleware(http.HandlerFunc(s.handleIngest)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if cfg.APIKey == "" {
		log.Warn("server: CREWMATE_API_KEY not set — API authentication is disabled")
	}

	var handler http.Handler = mux
	handler = authExempt(cfg.APIKey, handler)
	handler = s.httpMetrics(handler)
	handler = requestLogger(log, handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// authExempt applies Bearer auth to /api/ask and /api/ingest while leaving
// health, readiness, and metrics endpoints open for probes and scrapers.
func authExempt(apiKey string, next http.Handler) http.Handler {
	protected := authMiddleware(apiKey, next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health", "/api/ready", "/metrics":
			next.ServeHTTP(w, r)
		default:
			protected.ServeHTTP(w, r)
		}
	})
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. It resolves the thread to a namespace,
// enforces thread ownership, and runs the answer escalation chain.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Thread) == "" {
		http.Error(w, "thread is required", http.StatusBadRequest)
		return
	}
	tenant := req.Tenant
	if tenant == "" {
		tenant = "anonymous"
	}

	if s.registry != nil {
		if err := s.registry.Authorize(r.Context(), req.Thread, tenant); err != nil {
			if errors.Is(err, store.ErrThreadOwned) {
				s.observeAsk("denied", start)
				http.Error(w, "thread belongs to another tenant", http.StatusForbidden)
				return
			}
			s.observeAsk("error", start)
			log.Error("ask: ownership check failed", slog.Any("error", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	resp, err := s.asker.Answer(ctx, req.Query, rag.Namespace(tenant, req.Thread))
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.observeAsk(outcome, start)
		log.Error("ask failed", slog.Any("error", err))
		http.Error(w, "failed to answer query", http.StatusInternalServerError)
		return
	}

	s.observeAsk("ok", start)
	writeJSON(w, http.StatusOK, resp)
}

// handleIngest handles POST /api/ingest. It indexes raw document text into
// the thread's namespace and records thread ownership on success.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Thread) == "" {
		http.Error(w, "thread is required", http.StatusBadRequest)
		return
	}
	tenant := req.Tenant
	if tenant == "" {
		tenant = "anonymous"
	}

	if s.registry != nil {
		if err := s.registry.Authorize(r.Context(), req.Thread, tenant); err != nil {
			if errors.Is(err, store.ErrThreadOwned) {
				s.metrics.ingestRequestsTotal.WithLabelValues("denied").Inc()
				http.Error(w, "thread belongs to another tenant", http.StatusForbidden)
				return
			}
			s.metrics.ingestRequestsTotal.WithLabelValues("error").Inc()
			log.Error("ingest: ownership check failed", slog.Any("error", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	res, err := s.ingester.IngestText(r.Context(), req.Text, ingestion.Options{
		Namespace: rag.Namespace(tenant, req.Thread),
		FileName:  req.FileName,
		Replace:   req.Replace,
	})
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues("error").Inc()
		log.Error("ingest failed", slog.Any("error", err))
		http.Error(w, "failed to ingest document", http.StatusInternalServerError)
		return
	}
	if !res.Success {
		s.metrics.ingestRequestsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	if s.registry != nil {
		if err := s.registry.RecordIngest(r.Context(), req.Thread, tenant, req.FileName); err != nil {
			// The chunks are already stored; losing the registry row is logged
			// but does not fail the request.
			log.Warn("ingest: could not record thread ownership", slog.Any("error", err))
		}
	}

	s.metrics.ingestRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(res.Diagnostics.Chunks))
	writeJSON(w, http.StatusOK, res)
}

// observeAsk records the outcome counter and duration histogram for one
// /api/ask request.
func (s *Server) observeAsk(outcome string, start time.Time) {
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// writeJSON encodes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
