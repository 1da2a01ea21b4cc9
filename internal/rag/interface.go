// Package rag defines the interfaces for the retrieval core: namespaced
// vector storage, embedding, and hybrid retrieval. Concrete implementations
// (Qdrant, in-memory) satisfy these interfaces so the router and ingestion
// layers never depend on a specific backend.
package rag

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfiguration indicates a missing index name or credential. It is fatal:
// callers surface it immediately and never retry.
var ErrConfiguration = errors.New("configuration error")

// GeneralKnowledgeNamespace is the reserved namespace holding the shared
// general knowledge base consulted when a user's document cannot answer.
const GeneralKnowledgeNamespace = "general::knowledge-base"

// MaxExtraKeys bounds the free-form metadata map on a Record. Upserting a
// record with more keys is rejected rather than silently truncated.
const MaxExtraKeys = 16

// Namespace builds the partition key isolating one tenant's document scope.
// An empty tenant falls back to "anonymous" so unauthenticated sessions still
// get a well-formed key.
func Namespace(tenantID, threadID string) string {
	if tenantID == "" {
		tenantID = "anonymous"
	}
	return tenantID + "::" + threadID
}

// Metadata is the typed payload attached to every stored record: known
// optional fields plus a bounded free-form map for backend-specific extras.
type Metadata struct {
	// SourceDocument is the file name of the document this record came from.
	SourceDocument string

	// PreviewText is the chunk text stored alongside the vector, used as the
	// context excerpt at answer time. May be truncated by the ingester.
	PreviewText string

	// OriginalLanguage is the BCP-47 tag of the source text before any
	// upstream translation. Empty when unknown.
	OriginalLanguage string

	// Extra holds free-form string pairs, at most MaxExtraKeys entries.
	Extra map[string]string
}

// validate checks the Extra bound. Called by stores before a durable write.
func (m Metadata) validate() error {
	if len(m.Extra) > MaxExtraKeys {
		return fmt.Errorf("rag: metadata extra map has %d keys, limit is %d", len(m.Extra), MaxExtraKeys)
	}
	return nil
}

// Record is one vector plus its metadata, owned by the namespace it was
// upserted into. Records are never mutated in place; re-ingest replaces them
// by id or deletes the whole namespace first.
type Record struct {
	// ID is the chunk id, unique within the source document.
	ID string

	// Vector is the embedding; its length must equal the store's dimension.
	Vector []float32

	// Metadata carries the chunk text and provenance.
	Metadata Metadata
}

// Result is one retrieval hit. Score is ANN similarity, overwritten by the
// reranker score when reranking is active.
type Result struct {
	// ID is the stored record's id.
	ID string

	// Metadata is the record's payload as stored.
	Metadata Metadata

	// Score orders results descending. Higher is more relevant.
	Score float32
}

// VectorStore is a namespaced nearest-neighbour index. Implementations must
// be safe for concurrent use: one writer per namespace, unrestricted readers.
type VectorStore interface {
	// EnsureReady creates the backing index for the given embedding dimension
	// if it does not exist. Idempotent; the dimension is fixed for the life
	// of the index. Returns an error wrapping ErrConfiguration when a
	// required index name or credential is absent.
	EnsureReady(ctx context.Context, dimension int) error

	// Upsert inserts or overwrites records by id within the namespace and
	// returns the number written. An empty input is a no-op returning 0.
	// A batch either fully lands or the whole batch is reported failed.
	Upsert(ctx context.Context, namespace string, records []Record) (int, error)

	// QueryTopK returns up to k results ordered by descending similarity.
	// A namespace with no vectors yields an empty slice, not an error.
	// Results never cross namespaces.
	QueryTopK(ctx context.Context, namespace string, vector []float32, k int) ([]Result, error)

	// DeleteNamespace removes every record in the namespace. Idempotent.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Count returns the number of records in the namespace.
	Count(ctx context.Context, namespace string) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into fixed-dimension dense vectors.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length this embedder produces. It is
	// resolved once at construction and never changes.
	Dimension() int
}

// Retriever is the high-level interface the answer router uses to fetch
// context for a query. Implementations must be safe for concurrent use.
type Retriever interface {
	// Retrieve returns the finalK most relevant results for the query text
	// within one namespace, best first.
	Retrieve(ctx context.Context, query, namespace string, finalK int) ([]Result, error)
}
