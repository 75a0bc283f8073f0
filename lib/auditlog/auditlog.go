package auditlog

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/auditlog")

type Outcome string

const (
	Success Outcome = "SUCCESS"
	Failure Outcome = "FAILURE"
)

// Entry is one pipeline invocation against one target table.
type Entry struct {
	RunID   uuid.UUID
	Script  string
	Table   string
	Start   time.Time
	Outcome Outcome
	Action  string
	Remark  string
}

type row struct {
	RunID    string    `db:"RUN_ID"`
	Script   string    `db:"SCRIPT_NAME"`
	Table    string    `db:"TABLE_NAME"`
	ServerIP string    `db:"SERVER_IP"`
	Start    time.Time `db:"START_TIME"`
	End      time.Time `db:"END_TIME"`
	Duration string    `db:"DURATION"`
	Actions  string    `db:"ACTIONS"`
	Result   string    `db:"RESULT"`
	Inserted time.Time `db:"INSERT_DT"`
	Remark   string    `db:"REMARK"`
}

const insertRun = `insert into SCRIPT_RUN_LOG (
    RUN_ID, SCRIPT_NAME, TABLE_NAME, SERVER_IP, START_TIME, END_TIME,
    DURATION, ACTIONS, RESULT, INSERT_DT, REMARK
) values (
    :RUN_ID, :SCRIPT_NAME, :TABLE_NAME, :SERVER_IP, :START_TIME, :END_TIME,
    :DURATION, :ACTIONS, :RESULT, :INSERT_DT, :REMARK
)`

type Log struct {
	db   *sqlx.DB
	host string
	now  func() time.Time
}

func New(db *sqlx.DB) Log {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Log{db: db, host: host, now: time.Now}
}

// Duration is the elapsed time in seconds with microsecond precision.
func Duration(start, end time.Time) decimal.Decimal {
	return decimal.NewFromInt(end.Sub(start).Microseconds()).Shift(-6)
}

// LogRun records the entry, stamping its end time and duration.
func (l Log) LogRun(ctx context.Context, entry Entry) error {
	ctx, span := tracer.Start(ctx, "LogRun")
	defer span.End()

	span.SetAttributes(
		attribute.String("script", entry.Script),
		attribute.String("table", entry.Table),
		attribute.String("outcome", string(entry.Outcome)),
	)

	end := l.now()
	if entry.RunID == uuid.Nil {
		entry.RunID = uuid.New()
	}
	_, err := l.db.NamedExecContext(ctx, insertRun, row{
		RunID:    entry.RunID.String(),
		Script:   entry.Script,
		Table:    entry.Table,
		ServerIP: l.host,
		Start:    entry.Start,
		End:      end,
		Duration: Duration(entry.Start, end).StringFixed(6),
		Actions:  entry.Action,
		Result:   string(entry.Outcome),
		Inserted: end,
		Remark:   entry.Remark,
	})
	if err != nil {
		err = fmt.Errorf("write run log for %s: %w", entry.Table, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
