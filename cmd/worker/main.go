// Command worker is the thin CLI entrypoint wiring config, bundler, the
// wsbridge demo transport, and the worker façade into a runnable binary
// (spec.md §1: "CLI wiring ... is thin glue and is excluded" from the core,
// SPEC_FULL.md's supplemented cmd/worker).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/worker-core/bridge"
	"github.com/tailored-agentic-units/worker-core/bridge/wsbridge"
	"github.com/tailored-agentic-units/worker-core/bundler"
	"github.com/tailored-agentic-units/worker-core/config"
	"github.com/tailored-agentic-units/worker-core/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		bridgeAddr string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a durable-execution worker against a bridge endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, bridgeAddr, verbose)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the worker options JSON file (required)")
	cmd.Flags().StringVar(&bridgeAddr, "bridge-addr", "ws://127.0.0.1:7233/bridge", "wsbridge websocket endpoint")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	cmd.MarkFlagRequired("config")

	return cmd
}

func run(ctx context.Context, configPath, bridgeAddr string, verbose bool) error {
	opts, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := applyEnvOverlay(opts); err != nil {
		return fmt.Errorf("worker: env overlay: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	b := bundler.New(logger)
	bundle, err := b.Build(opts.WorkflowsDir)
	if err != nil {
		return fmt.Errorf("worker: building bundle: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	client, err := wsbridge.Dial(ctx, bridgeAddr)
	if err != nil {
		return fmt.Errorf("worker: dialing bridge %s: %w", bridgeAddr, err)
	}
	adapter := bridge.NewAdapter(client)

	w, err := worker.New(*opts, adapter, bundle, worker.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("worker: constructing worker: %w", err)
	}

	logger.Info("worker starting", slog.String("task_queue", opts.TaskQueue), slog.String("bridge_addr", bridgeAddr))
	return w.Run(ctx)
}
