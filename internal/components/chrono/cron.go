package chrono

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"palmstat-backend/lib/timezone"

	"github.com/robfig/cron/v3"
)

// CronAPI schedules callbacks on standard 5 field cron specs.
type CronAPI interface {
	Cron(spec string, callback func()) error
	NextRun() time.Time
}

// StandardCron evaluates specs in Malaysian time, the portal publishes on
// that calendar. Runs of the same entry never overlap.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron is the constructor of StandardCron, the scheduler is
// started right away.
func NewStandardCron() StandardCron {
	logger := cronLogger{}
	cronner := cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(timezone.Location),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
	cronner.Start()

	return StandardCron{
		cron: cronner,
	}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

// NextRun is the earliest upcoming activation of any entry, the zero time
// when nothing is scheduled.
func (s StandardCron) NextRun() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// Stop stops scheduling new jobs and waits for running ones until ctx is
// done.
func (s StandardCron) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i < len(keysAndValues)/2; i++ {
		idx := i * 2
		params = append(params, fmt.Sprint(keysAndValues[idx]), keysAndValues[idx+1])
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(fmt.Sprintf("cron: %s", msg), l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{"err", err}, l.formatParams(keysAndValues)...)
	slog.Error(fmt.Sprintf("cron: %s", msg), params...)
}
