package main

import (
	"context"
	"log/slog"
	"time"

	"palmstat-backend/cmd/palmstat-cli/commands"
	"palmstat-backend/lib/telemetry"
)

func main() {
	tel, err := telemetry.SetupFromEnv(context.Background(), "palmstat-cli")
	if err != nil {
		slog.Debug("telemetry not configured, using no-op providers", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			tel.Shutdown(ctx)
		}()
	}

	commands.ExecuteContext(context.Background())
}
