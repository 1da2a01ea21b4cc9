// Package commands defines all Cobra CLI commands for the crewmate binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/AniketAslaliya/crewmate-go/internal/audit"
	"github.com/AniketAslaliya/crewmate-go/internal/config"
	"github.com/AniketAslaliya/crewmate-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crewmate",
		Short: "Crewmate — chat with your documents, grounded answers first",
		Long: `Crewmate is a document question answering assistant.

Ingest a document into a conversation thread, then ask questions about it.
Answers are grounded in the document whenever possible; when the document
does not cover a question, Crewmate escalates to a shared knowledge base
and finally to web search, always telling you where an answer came from.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.crewmate/config.yaml).
See 'crewmate --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.crewmate/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewAnalyzeCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
