package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time
var version = "0.1.0"

func main() {
	os.Exit(execute(newRootCmd(), os.Args[1:]))
}

// execute runs the command tree and maps its error to a process exit code
func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpbridge",
		Short: "Topic pipeline tools over MCP stdio",
		Long: "mcpbridge exposes the topic backlog and research tools to agents over a " +
			"JSON-RPC stdio session, scoped by role.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to configuration file (JSON, JSONC or YAML)")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("mcpbridge version %s\n", version))

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckConfigCmd())
	root.AddCommand(newToolsCmd())
	root.AddCommand(newCallCmd())
	return root
}
