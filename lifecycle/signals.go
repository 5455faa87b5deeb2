package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// DefaultShutdownSignals are the signals the worker listens for absent an
// explicit shutdownSignals option (spec.md §6, default interrupt/
// terminate/quit).
var DefaultShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT}

// WatchSignals registers handlers for signals and calls shutdown exactly
// once when the first one arrives. It returns a stop function that
// deregisters the handlers; callers should defer it (spec.md §4.1 "run()
// ... registers OS signal handlers").
func WatchSignals(ctx context.Context, signals []os.Signal, logger *slog.Logger, shutdown func()) func() {
	if len(signals) == 0 {
		signals = DefaultShutdownSignals
	}
	if logger == nil {
		logger = slog.Default()
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			logger.Info("lifecycle: shutdown signal received", slog.String("signal", sig.String()))
			shutdown()
		case <-ctx.Done():
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
