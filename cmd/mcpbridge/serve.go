package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erauner12/topicbridge/internal/mcpserver/config"
	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
	"github.com/erauner12/topicbridge/internal/mcpserver/server"
	"github.com/erauner12/topicbridge/internal/mcpserver/telemetry"
	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
	"github.com/erauner12/topicbridge/internal/mcpserver/transport"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tools to one client over stdin/stdout",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addFilterFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return exitError(exitInvalidConfig, "failed to load configuration: %v", err)
	}
	applyFilterFlags(cmd, cfg)

	// Validate configuration AFTER applying CLI overrides
	if err := cfg.Validate(); err != nil {
		return exitError(exitInvalidConfig, "configuration validation failed: %v", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("filterMode", string(cfg.Filter.Mode)).
		Str("role", cfg.Filter.Role).
		Strs("allow", cfg.Filter.Allow).
		Bool("debug", cfg.Debug).
		Msg("Starting MCP Bridge Server")

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("Remote credentials not set; affected tools will fail")
	}

	if err := runServer(cmd.Context(), cfg, transport.NewStdio()); err != nil {
		log.Error().Err(err).Msg("MCP server failed")
		return err
	}

	log.Info().Msg("MCP Bridge Server stopped gracefully")
	return nil
}

// runServer serves one session over t until the client disconnects, ctx is
// cancelled or the process receives SIGINT/SIGTERM
func runServer(ctx context.Context, cfg *config.Config, t transport.Transport) error {
	filter, caller, err := cfg.Filter.Build()
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	tools.RegisterAllTools(registry)

	visible := tools.FilterTools(filter, caller, registry.List())
	names := make([]string, 0, len(visible))
	for _, d := range visible {
		names = append(names, d.Name)
	}
	log.Info().
		Int("registered", len(registry.Names())).
		Strs("visible", names).
		Msg("Registered tools")

	observer, err := telemetry.NewGlobalObserver()
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	info := jsonrpc.Implementation{Name: cfg.Server.Name, Version: cfg.Server.Version}
	if info.Version == "" {
		info.Version = version
	}

	logger := log.Logger
	srv := server.New(registry, server.Options{
		Info:        info,
		Services:    buildServices(cfg),
		Logger:      &logger,
		Observer:    observer,
		CallTimeout: cfg.Timeouts.Call.Std(),
	})

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return srv.ServeConn(gctx, t, server.SessionOptions{
			Filter:        filter,
			FilterContext: caller,
		})
	})

	// Shuts the session down on a signal. Returning an error cancels gctx.
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			return context.Canceled
		case <-done:
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildServices wires the remote clients behind the tool bodies. One HTTP
// client, and so one timeout, is shared by every remote.
func buildServices(cfg *config.Config) *tools.Services {
	httpClient := remote.NewHTTPClient(cfg.Timeouts.Remote.Std(), remote.WithLogger(log.Logger))
	return &tools.Services{
		Topics:  remote.NewNotionClient(cfg.NotionClientConfig(), httpClient),
		Search:  remote.NewExaClient(cfg.ExaClientConfig(), httpClient),
		Fetcher: remote.NewFetcher(cfg.FetchClientConfig(), httpClient),
	}
}
