package main

import (
	"github.com/spf13/cobra"

	"github.com/erauner12/topicbridge/internal/mcpserver/config"
)

// loadConfig loads the configuration from file and environment, then applies
// CLI flag overrides. Validation is left to the caller so overrides count.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnvironment()
	}
	if err != nil {
		return nil, err
	}

	logLevelSet := cmd.Flags().Changed("log-level")
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
		// --debug implies debug level unless a level was given explicitly
		if !logLevelSet {
			cfg.LogLevel = "debug"
		}
	}
	if logLevelSet {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}

	return cfg, nil
}

// addFilterFlags registers the session scoping flags
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("role", "", "Scope the session to a role (topic_selector, researcher)")
	cmd.Flags().StringSlice("allow", nil, "Expose only the named tools (comma-separated)")
	cmd.Flags().Bool("all", false, "Expose every registered tool")
}

// applyFilterFlags overrides the configured filter. A role wins over an
// allow-list, which then narrows the role; --all wins over both.
func applyFilterFlags(cmd *cobra.Command, cfg *config.Config) {
	if allow, _ := cmd.Flags().GetStringSlice("allow"); len(allow) > 0 {
		cfg.Filter.Allow = allow
		cfg.Filter.Mode = config.FilterModeAllow
	}
	if role, _ := cmd.Flags().GetString("role"); role != "" {
		cfg.Filter.Role = role
		cfg.Filter.Mode = config.FilterModeRole
	}
	if all, _ := cmd.Flags().GetBool("all"); all {
		cfg.Filter.Mode = config.FilterModeAll
	}
}
