package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"palmstat-backend/lib/auditlog"
	"palmstat-backend/lib/scrapers/mpob"
	"palmstat-backend/lib/sqlsink"
	"palmstat-backend/lib/textutil"
	"palmstat-backend/services/mpob/assemble"
	"palmstat-backend/services/mpob/reshape"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

type Fetcher interface {
	Login(ctx context.Context) error
	Fetch(ctx context.Context, link string) (mpob.Page, error)
}

type Sink interface {
	Merge(ctx context.Context, table string, columns []sqlsink.Column, rows []map[string]any) (int, error)
}

type Archiver interface {
	Archive(ctx context.Context, localPath, tag string) (string, error)
}

type Auditor interface {
	LogRun(ctx context.Context, entry auditlog.Entry) error
}

type Options struct {
	// BaseUrl prefixes the SOURCE column of every fact.
	BaseUrl  string
	Supplier string
	// TempDir receives the CSV extracts, one subdirectory per report.
	TempDir      string
	KeepExtracts bool
	// Concurrency is the number of categories processed at once.
	Concurrency int
}

type Service struct {
	fetch    Fetcher
	sink     Sink
	archiver Archiver
	audit    Auditor
	opts     Options
}

func NewService(fetch Fetcher, sink Sink, archiver Archiver, audit Auditor, opts Options) Service {
	if opts.BaseUrl == "" {
		opts.BaseUrl = mpob.DefaultBaseUrl
	}
	if opts.Supplier == "" {
		opts.Supplier = "MPOB"
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return Service{
		fetch:    fetch,
		sink:     sink,
		archiver: archiver,
		audit:    audit,
		opts:     opts,
	}
}

func ScriptName(report Report) string {
	return "palmstat:mpob:" + report.String()
}

func archiveTag(report Report) string {
	return "mpob_" + report.String()
}

type job struct {
	report   Report
	runID    uuid.UUID
	started  time.Time
	category string
	year     string
	link     string
	target   Category
}

// Run collects every category listed for report. Only authentication and
// listing failures end the run with an error, category failures are
// reported in the returned RunReport.
func (s Service) Run(ctx context.Context, report Report) (RunReport, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	spec, ok := specs[report]
	if !ok {
		return RunReport{}, fmt.Errorf("unknown report %d", int(report))
	}

	run := RunReport{
		RunID:   uuid.New(),
		Report:  report,
		Started: time.Now(),
	}
	span.SetAttributes(
		attribute.String("report", report.String()),
		attribute.String("run_id", run.RunID.String()),
	)

	fail := func(err error) (RunReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logRun(ctx, auditlog.Entry{
			RunID:   run.RunID,
			Script:  ScriptName(report),
			Table:   archiveTag(report),
			Start:   run.Started,
			Outcome: auditlog.Failure,
			Action:  "list reports",
			Remark:  err.Error(),
		})
		return run, err
	}

	if spec.login {
		err := s.fetch.Login(ctx)
		if err != nil {
			return fail(err)
		}
	}

	listing, err := s.fetch.Fetch(ctx, spec.path)
	if err != nil {
		return fail(err)
	}
	if listing.RequiresLogin() {
		slog.InfoContext(ctx, "listing redirected to login, authenticating again", "report", report.String())
		err = s.fetch.Login(ctx)
		if err != nil {
			return fail(err)
		}
		listing, err = s.fetch.Fetch(ctx, spec.path)
		if err != nil {
			return fail(err)
		}
		if listing.RequiresLogin() {
			return fail(fmt.Errorf("%w: listing still requires login", mpob.ErrAuthenticationFailure))
		}
	}

	links, err := listing.Links(ctx, spec.selector)
	if err != nil {
		return fail(err)
	}

	var jobs []job
	for _, link := range links {
		category, year, ok := spec.title(link.Title)
		if !ok {
			slog.DebugContext(ctx, "ignoring listing entry", "report", report.String(), "title", link.Title)
			continue
		}
		name, target, known := spec.lookup(category)
		if !known {
			closest, similarity := textutil.ClosestName(category, Categories(report))
			slog.WarnContext(ctx, "unknown category",
				"report", report.String(),
				"title", link.Title,
				"category", category,
				"closest", closest,
				"similarity", similarity,
			)
			run.Skipped = append(run.Skipped, link.Title)
			continue
		}
		jobs = append(jobs, job{
			report:   report,
			runID:    run.RunID,
			started:  run.Started,
			category: name,
			year:     year,
			link:     link.URL,
			target:   target,
		})
	}
	slog.InfoContext(ctx, "listed report", "report", report.String(), "categories", len(jobs), "skipped", len(run.Skipped))

	run.Results = make([]CategoryResult, len(jobs))
	var group errgroup.Group
	group.SetLimit(s.opts.Concurrency)
	for i, j := range jobs {
		group.Go(func() error {
			run.Results[i] = s.runCategory(ctx, j)
			return nil
		})
	}
	group.Wait()

	for _, res := range run.Results {
		if res.Failed() {
			categoryFailures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("report", report.String()),
				attribute.String("stage", string(res.Stage)),
			))
		}
	}
	return run, nil
}

func (s Service) logRun(ctx context.Context, entry auditlog.Entry) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogRun(ctx, entry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to write run log", "table", entry.Table, "err", err)
	}
}

func (s Service) extractPath(j job) string {
	return filepath.Join(
		s.opts.TempDir,
		archiveTag(j.report),
		fmt.Sprintf("%s_%s.csv", j.category, j.year),
	)
}

// runCategory never returns an error, every failure is captured in the
// result and in the run log.
func (s Service) runCategory(ctx context.Context, j job) CategoryResult {
	ctx, span := tracer.Start(ctx, "runCategory")
	defer span.End()

	span.SetAttributes(
		attribute.String("category", j.category),
		attribute.String("year", j.year),
		attribute.String("table", j.target.Table),
	)

	res := CategoryResult{
		Category: j.category,
		Year:     j.year,
		Link:     j.link,
		Target:   j.target,
	}
	entry := auditlog.Entry{
		RunID:  j.runID,
		Script: ScriptName(j.report),
		Table:  j.target.Table,
		Start:  j.started,
	}
	failed := func(stage Stage, err error) CategoryResult {
		res.Stage = stage
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "category failed",
			"report", j.report.String(),
			"category", j.category,
			"year", j.year,
			"stage", string(stage),
			"err", err,
		)
		return res
	}
	audited := func(stage Stage, err error) CategoryResult {
		entry.Outcome = auditlog.Failure
		entry.Action = string(stage)
		entry.Remark = err.Error()
		s.logRun(ctx, entry)
		return failed(stage, err)
	}

	facts, err := s.assemblePage(ctx, j)
	if err != nil {
		stage := StageAssemble
		if !errors.Is(err, reshape.ErrMalformedTable) && !errors.Is(err, reshape.ErrMissingSourceTable) {
			stage = StageFetch
		}
		return audited(stage, err)
	}
	res.Facts = facts

	extract := s.extractPath(j)
	err = assemble.WriteCSVFile(extract, facts)
	if err != nil {
		return audited(StageExtract, err)
	}
	res.Extract = extract
	if !s.opts.KeepExtracts {
		defer os.Remove(extract)
	}

	merged, mergeErr := s.persist(ctx, j, facts)
	if mergeErr != nil {
		entry.Outcome = auditlog.Failure
		entry.Action = fmt.Sprintf("merge %d rows", len(facts.Rows))
		entry.Remark = mergeErr.Error()
	} else {
		res.Merged = merged
		entry.Outcome = auditlog.Success
		entry.Action = fmt.Sprintf("merged %d rows", merged)
		factsMerged.Add(ctx, int64(merged), metric.WithAttributes(
			attribute.String("report", j.report.String()),
			attribute.String("table", j.target.Table),
		))
	}
	s.logRun(ctx, entry)

	// the extract is archived even when the merge failed
	if s.archiver != nil {
		remote, err := s.archiver.Archive(ctx, extract, archiveTag(j.report))
		if err != nil && mergeErr == nil {
			return failed(StageArchive, err)
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to archive extract", "extract", extract, "err", err)
		}
		res.Remote = remote
	}

	if mergeErr != nil {
		return failed(StagePersist, mergeErr)
	}
	slog.InfoContext(ctx, "category collected",
		"report", j.report.String(),
		"category", j.category,
		"year", j.year,
		"rows", merged,
	)
	return res
}

// assemblePage fetches the category page, follows its frame and assembles
// the frame's tables.
func (s Service) assemblePage(ctx context.Context, j job) (assemble.FactTable, error) {
	page, err := s.fetch.Fetch(ctx, j.link)
	if err != nil {
		return assemble.FactTable{}, err
	}
	frameUrl, err := page.FrameURL()
	if err != nil {
		return assemble.FactTable{}, fmt.Errorf("%s: %w", j.link, err)
	}
	frame, err := s.fetch.Fetch(ctx, frameUrl)
	if err != nil {
		return assemble.FactTable{}, err
	}

	tables, err := reshape.ReadTables(frame.HTML)
	if err != nil {
		return assemble.FactTable{}, err
	}
	return assemble.Assemble(j.target.Variant, assemble.Input{
		Tables:   tables,
		Category: j.category,
		Year:     j.year,
		Source:   SourceURL(s.opts.BaseUrl, j.report),
		Supplier: s.opts.Supplier,
	})
}

func (s Service) persist(ctx context.Context, j job, facts assemble.FactTable) (int, error) {
	columns := make([]sqlsink.Column, 0)
	for _, c := range facts.Columns() {
		columns = append(columns, sqlsink.Column{Name: c, Key: facts.IsKey(c)})
	}
	merged, err := s.sink.Merge(ctx, j.target.Table, columns, facts.Records())
	if err != nil {
		return 0, &PersistenceError{Table: j.target.Table, Err: err}
	}
	return merged, nil
}
