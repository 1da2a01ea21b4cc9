package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AniketAslaliya/crewmate-go/internal/analysis"
	"github.com/AniketAslaliya/crewmate-go/internal/logging"
	"github.com/AniketAslaliya/crewmate-go/internal/provider"
	"github.com/AniketAslaliya/crewmate-go/internal/rag"
)

// NewAnalyzeCmd constructs the `crewmate analyze` command, which produces a
// summary, FAQ, or study guide from a thread's ingested document.
func NewAnalyzeCmd() *cobra.Command {
	var thread string
	var tenant string
	var view string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize a thread's document",
		Long: `Analyze the document ingested into a thread without asking a question.

The quick view gives a short summary plus keyword and legal-likeness
heuristics; faq and guide write a document-grounded FAQ or study guide.

Examples:
  crewmate analyze --thread t1
  crewmate analyze --thread t1 --view faq
  crewmate analyze --thread t1 --tenant alice --view guide`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			registry := openRegistry(log)
			if registry != nil {
				defer func() { _ = registry.Close() }()
				if err := registry.Authorize(ctx, thread, tenant); err != nil {
					return fmt.Errorf("analyze: %w", err)
				}
			}

			stack, err := buildRAGStack(log)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			defer stack.Store.Close()

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("analyze: failed to initialise model provider: %w", err)
			}

			analyzer, err := analysis.New(stack.Store, stack.Embedder.Dimension(), provider.NewCompleter(chatModel))
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			namespace := rag.Namespace(tenant, thread)
			var rep *analysis.Report
			switch strings.ToLower(view) {
			case "quick":
				rep, err = analyzer.QuickAnalyze(ctx, namespace)
			case "faq":
				rep, err = analyzer.GenerateFAQ(ctx, namespace)
			case "guide":
				rep, err = analyzer.GenerateStudyGuide(ctx, namespace)
			default:
				return fmt.Errorf("analyze: unknown view %q (expected quick, faq, or guide)", view)
			}
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			if !rep.Success {
				return fmt.Errorf("analyze: %s", rep.Message)
			}

			fmt.Println(rep.Body)
			if len(rep.Keywords) > 0 {
				fmt.Printf("\nkeywords: %s\n", strings.Join(rep.Keywords, ", "))
			}
			if view == "quick" {
				fmt.Printf("legal-like: %t\n", rep.LegalLike)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&thread, "thread", "t", "", "Conversation thread to analyze (required)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant identifier (default: anonymous)")
	cmd.Flags().StringVar(&view, "view", "quick", "Analysis view: quick, faq, or guide")
	_ = cmd.MarkFlagRequired("thread")

	return cmd
}
