package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AniketAslaliya/crewmate-go/internal/ingestion"
	"github.com/AniketAslaliya/crewmate-go/internal/logging"
	"github.com/AniketAslaliya/crewmate-go/internal/rag"
)

// NewIngestCmd constructs the `crewmate ingest` command, which indexes a
// document into a thread's namespace in the vector store.
func NewIngestCmd() *cobra.Command {
	var thread string
	var tenant string
	var name string
	var replace bool
	var general bool

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a document into a conversation thread",
		Long: `Chunk, embed, and index a text document so it can be queried with 'crewmate ask'.

Each thread holds one document; re-ingesting with --replace removes the
previous document's chunks first. With --general the document is indexed
into the shared knowledge base that all threads fall back to.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: crewmate-docs)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  crewmate ingest --thread t1 lease.txt
  crewmate ingest --thread t1 --replace amendment.txt
  crewmate ingest --general company-handbook.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			if !general && thread == "" {
				return fmt.Errorf("ingest: --thread is required unless --general is set")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("ingest: read %s: %w", args[0], err)
			}
			fileName := name
			if fileName == "" {
				fileName = filepath.Base(args[0])
			}

			namespace := rag.GeneralKnowledgeNamespace
			if !general {
				namespace = rag.Namespace(tenant, thread)
			}

			registry := openRegistry(log)
			if registry != nil {
				defer func() { _ = registry.Close() }()
			}
			if registry != nil && !general {
				if err := registry.Authorize(ctx, thread, tenant); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}

			stack, err := buildRAGStack(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer stack.Store.Close()

			pipeline, err := ingestion.NewPipeline(stack.Embedder, stack.Store, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion",
				slog.String("file", fileName),
				slog.String("namespace", namespace),
				slog.Bool("replace", replace),
			)

			res, err := pipeline.IngestText(ctx, string(data), ingestion.Options{
				Namespace: namespace,
				FileName:  fileName,
				Replace:   replace,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if !res.Success {
				return fmt.Errorf("ingest: %s", res.Message)
			}

			if registry != nil && !general {
				t := tenant
				if t == "" {
					t = "anonymous"
				}
				if err := registry.RecordIngest(ctx, thread, t, fileName); err != nil {
					log.Warn("could not record thread ownership", slog.Any("error", err))
				}
			}

			fmt.Println(res.Message)
			fmt.Printf("chunks: %d  batches: %d  retries: %d  language: %s\n",
				res.Diagnostics.Chunks, res.Diagnostics.Batches, res.Diagnostics.Retries, res.Diagnostics.Language)
			return nil
		},
	}

	cmd.Flags().StringVarP(&thread, "thread", "t", "", "Conversation thread to ingest into")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant identifier (default: anonymous)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name for the document (default: file name)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the thread's existing document")
	cmd.Flags().BoolVar(&general, "general", false, "Ingest into the shared knowledge base instead of a thread")

	return cmd
}
