package commands

import (
	"context"
	"log/slog"
	"time"

	"palmstat-backend/internal/components/chrono"
	"palmstat-backend/lib/serviceutil"
	"palmstat-backend/lib/telemetry"
	"palmstat-backend/services/mpob/scraper"

	"github.com/spf13/cobra"
)

var scheduleSpec *string

func init() {
	scheduleSpec = scheduleCmd.Flags().String("cron", "", "Overrides the cron spec from the config.")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [--cron <spec>]",
	Short: "Collects every report on a cron schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		spec := cfg.Schedule
		if *scheduleSpec != "" {
			spec = *scheduleSpec
		}

		p, err := newPipeline(cfg)
		if err != nil {
			serviceutil.Fatal("failed to initialize pipeline", err)
		}
		defer p.Close()

		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		cron := chrono.NewStandardCron()
		err = cron.Cron(spec, func() {
			start := time.Now()
			err := p.run(ctx, scraper.AllReports(), nil)
			if err != nil {
				slog.Error("scheduled run finished with failures", "err", err)
			}
			slog.Info(
				"scheduled run done",
				"seconds", time.Since(start).Seconds(),
				"next", cron.NextRun().Format(time.RFC3339),
			)
		})
		if err != nil {
			serviceutil.Fatal("invalid cron spec", err)
		}
		slog.Info("waiting for scheduled runs", "cron", spec, "next", cron.NextRun().Format(time.RFC3339))

		<-ctx.Done()
		slog.Info("stopping scheduler")
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		cron.Stop(stopCtx)
	},
}
