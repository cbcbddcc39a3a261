package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
)

func newCheckConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and report missing credentials",
		Args:  cobra.NoArgs,
		RunE:  runCheckConfig,
	}
	addFilterFlags(cmd)
	return cmd
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return exitError(exitInvalidConfig, "failed to load configuration: %v", err)
	}
	applyFilterFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return exitError(exitInvalidConfig, "configuration validation failed: %v", err)
	}

	filter, caller, err := cfg.Filter.Build()
	if err != nil {
		return exitError(exitInvalidConfig, "configuration validation failed: %v", err)
	}
	registry := tools.NewRegistry()
	tools.RegisterAllTools(registry)
	visible := tools.FilterTools(filter, caller, registry.List())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "filter:   %s", cfg.Filter.Mode)
	if cfg.Filter.Role != "" {
		fmt.Fprintf(out, " (role %s)", cfg.Filter.Role)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "tools:    %d of %d visible\n", len(visible), len(registry.Names()))
	fmt.Fprintf(out, "timeouts: remote %s, call %s\n", cfg.Timeouts.Remote, cfg.Timeouts.Call)

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		return exitError(1, "missing credentials: %s", strings.Join(missing, ", "))
	}

	fmt.Fprintln(out, "configuration OK")
	return nil
}
