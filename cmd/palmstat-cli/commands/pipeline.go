package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	devenv "palmstat-backend/dev/env"
	"palmstat-backend/lib/archive"
	"palmstat-backend/lib/auditlog"
	"palmstat-backend/lib/notify"
	"palmstat-backend/lib/restyutil"
	"palmstat-backend/lib/scrapers/mpob"
	"palmstat-backend/lib/sqlsink"
	"palmstat-backend/services/mpob/scraper"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jmoiron/sqlx"
)

// pipeline holds everything a run of the collector needs, built once from
// the config.
type pipeline struct {
	db      *sqlx.DB
	service scraper.Service
	mailer  *notify.Mailer
}

func newPipeline(cfg Config) (pipeline, error) {
	var output restyutil.InstrumentOutput
	if *verbose {
		fsout, err := restyutil.NewFilesystemOutput("<dev_state>/resty/mpob", 5)
		if err != nil {
			return pipeline{}, err
		}
		slog.Debug("dumping portal traffic", "dir", fsout.Dir())
		output = fsout
	}
	client, err := mpob.NewClient(mpob.ClientOptions{
		BaseUrl:  cfg.Mpob.BaseUrl,
		Username: cfg.Mpob.Username,
		Password: cfg.Mpob.Password,
		Timeout:  cfg.Mpob.Timeout(),
		Output:   output,
	})
	if err != nil {
		return pipeline{}, err
	}

	mode, err := sqlsink.ParseMode(cfg.Database.MergeMode)
	if err != nil {
		return pipeline{}, err
	}
	db, err := cfg.Database.OpenDB()
	if err != nil {
		return pipeline{}, err
	}

	var store archive.Store
	if cfg.Ftp.Enabled() {
		store = archive.NewFtpStore(cfg.Ftp)
	} else {
		slog.Warn("ftp is not configured, extracts will not be uploaded")
	}

	tempDir, err := devenv.ResolvePath(cfg.TempDir)
	if err != nil {
		db.Close()
		return pipeline{}, err
	}

	p := pipeline{
		db: db,
		service: scraper.NewService(
			client,
			sqlsink.New(db, mode),
			archive.NewArchiver(store, cfg.Ftp.BaseDir),
			auditlog.New(db),
			scraper.Options{
				BaseUrl:      client.BaseUrl.String(),
				TempDir:      tempDir,
				KeepExtracts: cfg.KeepExtracts,
				Concurrency:  cfg.Concurrency,
			},
		),
	}
	if cfg.Smtp.Enabled() {
		mailer := notify.NewMailer(cfg.Smtp)
		p.mailer = &mailer
	}
	return p, nil
}

func (p pipeline) Close() error {
	return p.db.Close()
}

// run collects the given reports one after another, it returns an error if
// any report or category failed.
func (p pipeline) run(ctx context.Context, reports []scraper.Report, out io.Writer) error {
	var errs []error
	for _, report := range reports {
		run, err := p.service.Run(ctx, report)
		failures := run.Notifications()
		if err != nil {
			slog.ErrorContext(ctx, "report run failed", "report", report.String(), "err", err)
			failures = append(failures, notify.Failure{
				Report: report.String(),
				Stage:  "list",
				Err:    err,
			})
			errs = append(errs, fmt.Errorf("%s: %w", report, err))
		}
		if len(run.Failures()) > 0 {
			errs = append(errs, fmt.Errorf("%s: %d categories failed", report, len(run.Failures())))
		}
		if out != nil {
			printRun(out, run)
		}

		if len(failures) > 0 && p.mailer != nil {
			err = p.mailer.SendFailures(ctx, run.RunID.String(), failures)
			if err != nil {
				slog.ErrorContext(ctx, "failed to send failure mail", "report", report.String(), "err", err)
			}
		}
	}
	return errors.Join(errs...)
}

func printRun(out io.Writer, run scraper.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s (%s)", run.Report, run.RunID))
	t.AppendHeader(table.Row{"Category", "Year", "Table", "Rows", "Archive", "Error"})
	for _, res := range run.Results {
		errText := ""
		if res.Failed() {
			errText = fmt.Sprintf("%s: %v", res.Stage, res.Err)
		}
		t.AppendRow(table.Row{res.Category, res.Year, res.Target.Table, res.Merged, res.Remote, errText})
	}
	for _, title := range run.Skipped {
		t.AppendRow(table.Row{title, "", "", "", "", "skipped: unknown category"})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
