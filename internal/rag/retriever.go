package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AniketAslaliya/crewmate-go/internal/logging"
)

// Reranker rescores a (query, candidate) pair. A higher score means a better
// match. Implementations live outside this package; the retriever only needs
// the contract.
type Reranker interface {
	// Score returns the relevance of candidate text to the query.
	Score(ctx context.Context, query, candidate string) (float32, error)
}

// DefaultOverfetch is the multiplier applied to finalK when querying the ANN
// index, so the reranker has a wide candidate pool to reorder.
const DefaultOverfetch = 10

// DefaultRerankTimeout bounds the whole reranking pass for one retrieval.
const DefaultRerankTimeout = 5 * time.Second

// HybridRetriever implements Retriever as a two-stage pipeline: an ANN query
// against the vector store with overfetch, then an optional rerank pass over
// the candidates. Reranking is strictly best-effort; any failure falls back
// to the ANN ordering so retrieval never breaks because scoring did.
type HybridRetriever struct {
	embedder Embedder
	store    VectorStore

	// reranker may be nil, in which case ANN order is final.
	reranker Reranker

	// overfetch multiplies finalK to size the ANN candidate pool.
	overfetch int

	// rerankTimeout bounds the rerank pass. The primary path keeps the
	// caller's deadline.
	rerankTimeout time.Duration

	// metrics may be nil, in which case no instrumentation is recorded.
	metrics *retrievalMetrics
}

// RetrieverOption configures a HybridRetriever.
type RetrieverOption func(*HybridRetriever)

// WithReranker enables the rerank stage.
func WithReranker(r Reranker) RetrieverOption {
	return func(h *HybridRetriever) { h.reranker = r }
}

// WithOverfetch overrides the ANN overfetch multiplier.
func WithOverfetch(n int) RetrieverOption {
	return func(h *HybridRetriever) {
		if n > 0 {
			h.overfetch = n
		}
	}
}

// WithRerankTimeout overrides the rerank pass deadline.
func WithRerankTimeout(d time.Duration) RetrieverOption {
	return func(h *HybridRetriever) {
		if d > 0 {
			h.rerankTimeout = d
		}
	}
}

// WithMetrics registers retrieval metrics against reg and enables
// instrumentation of Retrieve calls.
func WithMetrics(reg prometheus.Registerer) RetrieverOption {
	return func(h *HybridRetriever) { h.metrics = newRetrievalMetrics(reg) }
}

// NewHybridRetriever creates a retriever over the given embedder and store.
func NewHybridRetriever(embedder Embedder, store VectorStore, opts ...RetrieverOption) *HybridRetriever {
	h := &HybridRetriever{
		embedder:      embedder,
		store:         store,
		overfetch:     DefaultOverfetch,
		rerankTimeout: DefaultRerankTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Retrieve embeds the query, fetches an overfetched candidate set from the
// namespace, optionally reranks it, and returns the top finalK results in
// descending score order. The general knowledge namespace always skips
// reranking.
func (h *HybridRetriever) Retrieve(ctx context.Context, query, namespace string, finalK int) ([]Result, error) {
	if finalK <= 0 {
		return nil, fmt.Errorf("retriever: finalK must be positive, got %d", finalK)
	}

	start := time.Now()
	reranked := false
	defer func() {
		if h.metrics != nil {
			h.metrics.durationSeconds.
				WithLabelValues(strconv.FormatBool(reranked)).
				Observe(time.Since(start).Seconds())
		}
	}()

	vectors, err := h.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever: failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("retriever: embedder returned %d vectors for one query", len(vectors))
	}

	initialK := finalK * h.overfetch
	if initialK < finalK {
		initialK = finalK
	}

	candidates, err := h.store.QueryTopK(ctx, namespace, vectors[0], initialK)
	if err != nil {
		return nil, fmt.Errorf("retriever: vector query failed: %w", err)
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	if h.reranker != nil && namespace != GeneralKnowledgeNamespace {
		reranked = true
		candidates = h.rerank(ctx, query, candidates)
	}

	if len(candidates) > finalK {
		candidates = candidates[:finalK]
	}
	return candidates, nil
}

// rerank rescores candidates with the configured reranker and re-sorts them.
// On any scoring error or timeout it logs a warning and returns the original
// ANN-ordered slice unchanged.
func (h *HybridRetriever) rerank(ctx context.Context, query string, candidates []Result) []Result {
	rctx, cancel := context.WithTimeout(ctx, h.rerankTimeout)
	defer cancel()

	rescored := make([]Result, len(candidates))
	copy(rescored, candidates)

	for i := range rescored {
		score, err := h.reranker.Score(rctx, query, rescored[i].Metadata.PreviewText)
		if err != nil {
			if h.metrics != nil {
				h.metrics.rerankDegradationsTotal.Inc()
			}
			logging.FromContext(ctx).Warn("reranker failed, falling back to ANN order",
				"error", err,
				"candidates", len(candidates))
			return candidates
		}
		rescored[i].Score = score
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Score > rescored[j].Score
	})
	return rescored
}
