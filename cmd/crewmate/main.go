// Command crewmate is the entry point for the Crewmate document assistant.
// It provides a CLI interface (via Cobra) and an optional HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/AniketAslaliya/crewmate-go/cmd/crewmate/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
