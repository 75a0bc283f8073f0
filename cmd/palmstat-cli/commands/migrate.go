package commands

import (
	"log/slog"

	"palmstat-backend/lib/serviceutil"
	"palmstat-backend/services/mpob/db"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the fact tables and the run log in the configured database.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		out, err := cfg.Database.OpenDB()
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer out.Close()

		_, err = out.ExecContext(cmd.Context(), db.Schema)
		if err != nil {
			serviceutil.Fatal("failed to apply schema", err)
		}
		slog.Info("schema applied", "driver", cfg.Database.DriverName())
	},
}
