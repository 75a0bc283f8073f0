package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled on the first SIGINT or SIGTERM so in-flight
// runs can finish their cleanup. A second signal exits right away.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		slog.Info("shutting down", "signal", sig.String())
		cancel()

		sig = <-sigs
		slog.Warn("forced exit", "signal", sig.String())
		os.Exit(130)
	}()

	return ctx
}

// Fatal logs err with any extra attributes and exits with status 1.
func Fatal(message string, err error, attrs ...any) {
	slog.Error(message, append([]any{"err", err}, attrs...)...)
	os.Exit(1)
}
