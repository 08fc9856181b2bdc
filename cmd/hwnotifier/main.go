package main

import (
	"context"
	"hwnotifier/cmd/hwnotifier/commands"
	"hwnotifier/lib/serviceutil"
	"hwnotifier/lib/telemetry"
	"log/slog"
	"os"
	"time"
)

func run() int {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "hwnotifier")
	if os.IsNotExist(err) {
		slog.Debug("telemetry.json5 not found, telemetry is disabled")
	} else if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		err := tel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}()
	telemetry.InstrumentPerfStats(ctx)

	return commands.ExecuteContext(ctx)
}

func main() {
	os.Exit(run())
}
