package commands

import (
	"os"

	"palmstat-backend/lib/serviceutil"
	"palmstat-backend/services/mpob/scraper"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func parseReports(args []string) ([]scraper.Report, error) {
	if len(args) == 0 {
		return scraper.AllReports(), nil
	}
	var reports []scraper.Report
	for _, arg := range args {
		r, err := scraper.ParseReport(arg)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [export|production|stock|summary...]",
	Short: "Collects the given reports (all of them by default) into the database.",
	Run: func(cmd *cobra.Command, args []string) {
		reports, err := parseReports(args)
		if err != nil {
			serviceutil.Fatal("invalid arguments", err)
		}
		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		p, err := newPipeline(cfg)
		if err != nil {
			serviceutil.Fatal("failed to initialize pipeline", err)
		}

		err = p.run(cmd.Context(), reports, os.Stdout)
		p.Close()
		if err != nil {
			serviceutil.Fatal("scrape finished with failures", err)
		}
	},
}
