package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/AniketAslaliya/crewmate-go/internal/ingestion"
	"github.com/AniketAslaliya/crewmate-go/internal/logging"
	"github.com/AniketAslaliya/crewmate-go/internal/provider"
	"github.com/AniketAslaliya/crewmate-go/internal/server"
	"github.com/AniketAslaliya/crewmate-go/internal/tracing"
)

// NewServeCmd constructs the `crewmate serve` command, which starts the HTTP
// API for document ingestion and question answering.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Crewmate HTTP API server",
		Long: `Start the Crewmate HTTP server on localhost.

The server exposes POST /api/ingest and POST /api/ask, plus health,
readiness, and Prometheus metrics endpoints. Set CREWMATE_API_KEY to
require Bearer authentication on the API routes.

Examples:
  crewmate serve
  crewmate serve --port 9090
  MODEL_PROVIDER=azure crewmate serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			stack, err := buildRAGStack(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stack.Store.Close()

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}

			rt := buildRouter(chatModel, stack.Retriever, log)

			pipeline, err := ingestion.NewPipeline(stack.Embedder, stack.Store, nil)
			if err != nil {
				return fmt.Errorf("serve: failed to create pipeline: %w", err)
			}

			registry := openRegistry(log)
			if registry != nil {
				defer func() { _ = registry.Close() }()
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(stack.Store.Client()),
				server.NewLLMPinger(chatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama")),
			}
			if registry != nil {
				pingers = append(pingers, server.NewRegistryPinger(registry))
			}

			srv, err := server.New(rt, pipeline, registry, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("CREWMATE_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
