package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AniketAslaliya/crewmate-go/internal/logging"
	"github.com/AniketAslaliya/crewmate-go/internal/provider"
	"github.com/AniketAslaliya/crewmate-go/internal/rag"
)

// NewAskCmd constructs the `crewmate ask` command, which answers a single
// question against a thread's ingested document.
func NewAskCmd() *cobra.Command {
	var thread string
	var tenant string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about a thread's document",
		Long: `Ask a natural language question about the document ingested into a thread.

The answer is grounded in the document when possible. Questions the document
does not cover escalate to the shared knowledge base and then to web search;
the output always states which source the answer came from.

Examples:
  crewmate ask --thread t1 "what is the notice period for termination?"
  crewmate ask --thread t1 --tenant alice "who pays the security deposit?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			registry := openRegistry(log)
			if registry != nil {
				defer func() { _ = registry.Close() }()
				if err := registry.Authorize(ctx, thread, tenant); err != nil {
					return fmt.Errorf("ask: %w", err)
				}
			}

			stack, err := buildRAGStack(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stack.Store.Close()

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}
			rt := buildRouter(chatModel, stack.Retriever, log)

			resp, err := rt.Answer(ctx, args[0], rag.Namespace(tenant, thread))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(resp.Answer)
			if len(resp.Citations) > 0 {
				fmt.Println()
				for _, c := range resp.Citations {
					fmt.Printf("  [%s] %s\n", c.SourceDocument, c.Excerpt)
				}
			}
			fmt.Printf("\n(source: %s)\n", resp.Source)
			return nil
		},
	}

	cmd.Flags().StringVarP(&thread, "thread", "t", "", "Conversation thread to query (required)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant identifier (default: anonymous)")
	_ = cmd.MarkFlagRequired("thread")

	return cmd
}
