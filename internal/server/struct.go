package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AniketAslaliya/crewmate-go/internal/ingestion"
	"github.com/AniketAslaliya/crewmate-go/internal/router"
	"github.com/AniketAslaliya/crewmate-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds the end-to-end handling of a single /api/ask request,
	// including retrieval, LLM calls, and web search escalation.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations. If nil,
	// prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. If nil, prometheus.DefaultGatherer
	// is used.
	MetricsGatherer prometheus.Gatherer
}

// asker is the interface handleAsk calls to answer a question.
// *router.Router satisfies it; tests inject a fake.
type asker interface {
	// Answer resolves the query against the given namespace.
	Answer(ctx context.Context, query, namespace string) (*router.Response, error)
}

// ingester is the interface handleIngest calls to index a document.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	// IngestText chunks, embeds, and stores raw document text.
	IngestText(ctx context.Context, text string, opts ingestion.Options) (*ingestion.Result, error)
}

// Server is the HTTP server that exposes ingestion and question answering.
type Server struct {
	// asker answers /api/ask requests.
	asker asker
	// ingester indexes documents for /api/ingest requests.
	ingester ingester
	// registry tracks thread ownership. May be nil, disabling ownership checks.
	registry store.ThreadRegistry
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus metrics owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
	// Thread is the conversation thread identifier.
	Thread string `json:"thread"`
	// Tenant is the tenant identifier. Defaults to "anonymous" if empty.
	Tenant string `json:"tenant,omitempty"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Text is the raw document text to index.
	Text string `json:"text"`
	// FileName is the display name of the document.
	FileName string `json:"fileName"`
	// Thread is the conversation thread the document belongs to.
	Thread string `json:"thread"`
	// Tenant is the tenant identifier. Defaults to "anonymous" if empty.
	Tenant string `json:"tenant,omitempty"`
	// Replace deletes any previously ingested document in the thread first.
	Replace bool `json:"replace,omitempty"`
}
