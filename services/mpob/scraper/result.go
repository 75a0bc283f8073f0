package scraper

import (
	"fmt"
	"time"

	"palmstat-backend/lib/notify"
	"palmstat-backend/services/mpob/assemble"

	"github.com/google/uuid"
)

// Stage is the step of a category pipeline.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageAssemble Stage = "assemble"
	StageExtract  Stage = "extract"
	StagePersist  Stage = "persist"
	StageArchive  Stage = "archive"
)

// PersistenceError is a sink failure for one table.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("merge into %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// CategoryResult is the outcome of one category pipeline. Err is nil on
// success, otherwise Stage names the step that failed.
type CategoryResult struct {
	Category string
	Year     string
	Link     string
	Target   Category

	Facts   assemble.FactTable
	Merged  int
	Extract string
	Remote  string

	Stage Stage
	Err   error
}

func (r CategoryResult) Failed() bool {
	return r.Err != nil
}

// RunReport aggregates the category results of one report run.
type RunReport struct {
	RunID   uuid.UUID
	Report  Report
	Started time.Time
	Results []CategoryResult
	// Skipped holds listing titles that name no known category.
	Skipped []string
}

func (r RunReport) Failures() []CategoryResult {
	var out []CategoryResult
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Notifications converts the failed categories for the failure mail.
func (r RunReport) Notifications() []notify.Failure {
	var out []notify.Failure
	for _, res := range r.Failures() {
		out = append(out, notify.Failure{
			Report:   r.Report.String(),
			Category: res.Category,
			Year:     res.Year,
			Stage:    string(res.Stage),
			Err:      res.Err,
		})
	}
	return out
}
