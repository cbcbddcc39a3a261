package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/erauner12/topicbridge/internal/mcpserver/client"
	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
)

// serverCommand describes how to launch this binary as a stdio server
var serverCommand = func() (client.Config, error) {
	exe, err := os.Executable()
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{Command: exe, Args: []string{"serve"}}, nil
}

// clientConfig builds the configuration for a client that spawns `serve`
// with the caller's scoping flags
func clientConfig(cmd *cobra.Command) (client.Config, []client.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return client.Config{}, nil, exitError(exitInvalidConfig, "failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	ccfg, err := serverCommand()
	if err != nil {
		return client.Config{}, nil, fmt.Errorf("locate server binary: %w", err)
	}
	ccfg.ClientInfo.Name = "mcpbridge"
	ccfg.ClientInfo.Version = version

	if role, _ := cmd.Flags().GetString("role"); role != "" {
		r, err := tools.ParseRole(role)
		if err != nil {
			return client.Config{}, nil, exitError(exitInvalidConfig, "%v", err)
		}
		ccfg.Role = r
	}
	ccfg.AllowedTools, _ = cmd.Flags().GetStringSlice("allow")

	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		ccfg.Args = append(ccfg.Args, "--config", configPath)
	}
	ccfg.RequestTimeout = cfg.Timeouts.Call.Std() + cfg.Timeouts.Remote.Std()

	// Client chatter stays out of command output unless debugging
	logger := log.Logger.Level(zerolog.WarnLevel)
	opts := []client.Option{client.WithLogger(logger)}
	if cfg.Debug {
		ccfg.Args = append(ccfg.Args, "--debug")
		opts = []client.Option{client.WithLogger(log.Logger), client.WithStderr(cmd.ErrOrStderr())}
	}
	return ccfg, opts, nil
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools a role can see",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
	cmd.Flags().String("role", "", "Role to list tools for (topic_selector, researcher)")
	cmd.Flags().StringSlice("allow", nil, "Restrict the listing to the named tools")
	cmd.Flags().Bool("json", false, "Print descriptors, including input schemas, as JSON")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	ccfg, opts, err := clientConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	return client.WithClient(cmd.Context(), ccfg, func(c *client.Client) error {
		list, err := c.ListTools(cmd.Context(), false)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, list)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, d := range list {
			fmt.Fprintf(w, "%s\t%s\n", d.Name, d.Description)
		}
		return w.Flush()
	}, opts...)
}

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call one tool and print its result",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	}
	cmd.Flags().String("role", "", "Role to call the tool as (topic_selector, researcher)")
	cmd.Flags().StringSlice("allow", nil, "Restrict the session to the named tools")
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	name := args[0]

	rawArgs, _ := cmd.Flags().GetString("args")
	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
		return exitError(exitInvalidConfig, "invalid --args: %v", err)
	}

	ccfg, opts, err := clientConfig(cmd)
	if err != nil {
		return err
	}

	err = client.WithClient(cmd.Context(), ccfg, func(c *client.Client) error {
		result, err := c.CallTool(cmd.Context(), name, toolArgs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch v := result.(type) {
		case nil:
			return nil
		case string:
			_, err := fmt.Fprintln(out, v)
			return err
		default:
			return writeJSON(out, v)
		}
	}, opts...)

	if errors.Is(err, client.ErrToolNotFound) {
		return exitError(exitToolNotFound, "%v", err)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
