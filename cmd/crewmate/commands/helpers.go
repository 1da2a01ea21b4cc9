package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AniketAslaliya/crewmate-go/internal/embedder"
	"github.com/AniketAslaliya/crewmate-go/internal/provider"
	"github.com/AniketAslaliya/crewmate-go/internal/rag"
	"github.com/AniketAslaliya/crewmate-go/internal/reranker"
	"github.com/AniketAslaliya/crewmate-go/internal/router"
	"github.com/AniketAslaliya/crewmate-go/internal/store"
	"github.com/AniketAslaliya/crewmate-go/internal/websearch"
)

// ragStack bundles the retrieval dependencies shared by ask, ingest, and serve.
type ragStack struct {
	// Embedder turns text into vectors.
	Embedder rag.Embedder
	// Store is the Qdrant vector store.
	Store *rag.QdrantStore
	// Retriever is the similarity retriever, with reranking if enabled.
	Retriever rag.Retriever
}

// buildRAGStack validates the embedding configuration and connects to Qdrant.
// Callers must Close the returned store.
func buildRAGStack(log *slog.Logger) (*ragStack, error) {
	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are already descriptive
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "crewmate-docs")

	vs, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: collection,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", qdrantHost),
		slog.Int("port", qdrantPort),
		slog.String("collection", collection),
	)

	opts := []rag.RetrieverOption{rag.WithMetrics(prometheus.DefaultRegisterer)}
	if os.Getenv("RERANKER_ENABLED") == "true" {
		opts = append(opts, rag.WithReranker(reranker.NewLexical()))
		log.Info("reranker enabled")
	}

	return &ragStack{
		Embedder:  emb,
		Store:     vs,
		Retriever: rag.NewHybridRetriever(emb, vs, opts...),
	}, nil
}

// buildRouter wires the answer router: LLM completer, retriever, and the
// optional web search backend.
func buildRouter(chatModel model.ToolCallingChatModel, retriever rag.Retriever, log *slog.Logger) *router.Router {
	var search router.Searcher
	ws := websearch.New(os.Getenv("GOOGLE_SEARCH_API_KEY"), os.Getenv("GOOGLE_CSE_ID"))
	if ws.Configured() {
		search = ws
		log.Info("web search enabled")
	} else {
		log.Info("web search disabled", slog.String("reason", "GOOGLE_SEARCH_API_KEY not set"))
	}

	return router.New(retriever, provider.NewCompleter(chatModel), search)
}

// openRegistry opens the thread registry. CREWMATE_THREADS_DB overrides the
// default path (~/.crewmate/threads.db); "disabled" turns ownership checks off.
// Returns nil when the registry is unavailable, which callers treat as
// disabled rather than fatal.
func openRegistry(log *slog.Logger) store.ThreadRegistry {
	dbPath := os.Getenv("CREWMATE_THREADS_DB")
	if dbPath == "disabled" {
		log.Info("threads: registry disabled via CREWMATE_THREADS_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("threads: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	reg, err := store.Open(dbPath)
	if err != nil {
		log.Warn("threads: failed to open registry, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("threads: registry opened", slog.String("path", dbPath))
	return reg
}

// getEnvOrDefault returns the env var value or fallback if unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback if unset or invalid.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
