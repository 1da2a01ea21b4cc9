// Package ingestion implements the document ingestion pipeline: raw text is
// chunked, each batch of chunks is embedded, and the vectors are upserted
// into the caller's namespace. The pipeline is invoked by the
// `crewmate ingest` CLI command and the HTTP ingest endpoint.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/AniketAslaliya/crewmate-go/internal/budget"
	"github.com/AniketAslaliya/crewmate-go/internal/chunker"
	"github.com/AniketAslaliya/crewmate-go/internal/logging"
	"github.com/AniketAslaliya/crewmate-go/internal/rag"
)

// previewChars caps how much chunk text is stored as retrievable metadata.
const previewChars = 4000

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// sliding-window chunks. Defaults to 200 if zero.
	ChunkOverlap int

	// BatchSize is how many chunks are embedded and upserted per backend
	// call. Batches for one document run sequentially. Defaults to 64.
	BatchSize int

	// RetryBackoff is the pause before retrying a failed batch once.
	// Defaults to 500ms.
	RetryBackoff time.Duration
}

// Options scope one ingestion run.
type Options struct {
	// Namespace is the tenant/thread partition receiving the chunks.
	Namespace string

	// FileName labels every chunk's source_document metadata.
	FileName string

	// OriginalLanguage is the document's language tag. Inferred from the
	// text when empty.
	OriginalLanguage string

	// Replace deletes the namespace before ingesting, enforcing the
	// one-document-per-thread model. The delete is best-effort.
	Replace bool
}

// Diagnostics reports what one ingestion run did.
type Diagnostics struct {
	Chunks          int    `json:"chunks"`
	Batches         int    `json:"batches"`
	Retries         int    `json:"retries"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Language        string `json:"language,omitempty"`
	CleanupOK       bool   `json:"cleanup_ok"`
}

// Result is the outcome of one ingestion run. Backend failures surface as
// Success false with a Message and a nil error; callers should only see an
// error for context cancellation or an unusable pipeline configuration.
type Result struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Pipeline orchestrates the chunk → embed → upsert flow.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultTargetSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	return &Pipeline{embedder: embedder, store: store, cfg: cfg}, nil
}

// IngestText chunks, embeds, and stores one document's text under the given
// namespace. Empty text yields an unsuccessful Result without an error.
// Batch failures are retried once; a batch that fails twice aborts the run
// with an unsuccessful Result carrying the partial diagnostics, relying on
// the store's per-batch atomicity so no batch lands half-applied.
func (p *Pipeline) IngestText(ctx context.Context, text string, opts Options) (*Result, error) {
	log := logging.FromContext(ctx)
	res := &Result{}

	if opts.Replace {
		res.Diagnostics.CleanupOK = p.CleanupNamespace(ctx, opts.Namespace)
	}

	chunks, err := chunker.Split(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("ingestion: chunking failed: %w", err)
	}
	if len(chunks) == 0 {
		res.Message = "No text extracted from document."
		return res, nil
	}

	lang := opts.OriginalLanguage
	if lang == "" {
		lang = InferLanguage(text)
	}
	res.Diagnostics.Chunks = len(chunks)
	res.Diagnostics.Language = lang
	res.Diagnostics.EstimatedTokens = budget.Estimate(text)

	if err := p.store.EnsureReady(ctx, p.embedder.Dimension()); err != nil {
		res.Message = fmt.Sprintf("Vector store not ready: %v", err)
		return res, nil
	}

	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		res.Diagnostics.Batches++

		if err := p.ingestBatch(ctx, batch, opts, lang); err != nil {
			log.Warn("ingest batch failed, retrying once",
				"namespace", opts.Namespace,
				"batch_start", start,
				"error", err)
			res.Diagnostics.Retries++

			select {
			case <-time.After(p.cfg.RetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if err := p.ingestBatch(ctx, batch, opts, lang); err != nil {
				log.Error("ingest batch failed after retry, aborting run",
					"namespace", opts.Namespace,
					"batch_start", start,
					"error", err)
				res.Message = fmt.Sprintf("Ingestion failed at chunk %d: %v", start, err)
				return res, nil
			}
		}
	}

	res.Success = true
	res.Message = fmt.Sprintf("Ingested %d chunks into %s", len(chunks), opts.Namespace)
	return res, nil
}

// ingestBatch embeds one batch of chunks and upserts the records.
func (p *Pipeline) ingestBatch(ctx context.Context, batch []chunker.Chunk, opts Options, lang string) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	records := make([]rag.Record, 0, len(batch))
	for i, c := range batch {
		preview := c.Text
		if runes := []rune(preview); len(runes) > previewChars {
			preview = string(runes[:previewChars])
		}
		records = append(records, rag.Record{
			ID:     c.ID,
			Vector: vectors[i],
			Metadata: rag.Metadata{
				SourceDocument:   opts.FileName,
				PreviewText:      preview,
				OriginalLanguage: lang,
			},
		})
	}

	if _, err := p.store.Upsert(ctx, opts.Namespace, records); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// CleanupNamespace deletes every record in the namespace as a non-critical
// side effect: a failure is logged and reported in the return value, never
// propagated, so a replace ingest can proceed over a flaky delete.
func (p *Pipeline) CleanupNamespace(ctx context.Context, namespace string) bool {
	if err := p.store.DeleteNamespace(ctx, namespace); err != nil {
		logging.FromContext(ctx).Warn("namespace cleanup failed, stale chunks may remain",
			"namespace", namespace,
			"error", err)
		return false
	}
	return true
}
