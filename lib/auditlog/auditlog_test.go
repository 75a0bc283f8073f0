package auditlog

import (
	"context"
	"testing"
	"time"

	"palmstat-backend/lib/testutil"
	"palmstat-backend/services/mpob/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLogRun(t *testing.T) {
	conn := testutil.OpenDB(t, testutil.DBParams{
		Name:   "lib/auditlog",
		Schema: db.Schema,
	})

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	log := New(conn)
	log.now = func() time.Time {
		return start.Add(1500 * time.Millisecond)
	}

	runID := uuid.New()
	err := log.LogRun(context.Background(), Entry{
		RunID:   runID,
		Script:  "palmstat:mpob:export",
		Table:   db.TableExportPort,
		Start:   start,
		Outcome: Failure,
		Action:  "merge",
		Remark:  "constraint failed",
	})
	require.NoError(t, err)

	var stored struct {
		RunID    string `db:"RUN_ID"`
		Duration string `db:"DURATION"`
		Result   string `db:"RESULT"`
		Remark   string `db:"REMARK"`
		ServerIP string `db:"SERVER_IP"`
	}
	err = conn.Get(&stored, "select RUN_ID, cast(DURATION as text) as DURATION, RESULT, REMARK, SERVER_IP from SCRIPT_RUN_LOG")
	require.NoError(t, err)
	require.Equal(t, runID.String(), stored.RunID)
	require.Equal(t, "1.5", stored.Duration)
	require.Equal(t, "FAILURE", stored.Result)
	require.Equal(t, "constraint failed", stored.Remark)
	require.NotEmpty(t, stored.ServerIP)
}

func TestDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.Equal(t, "0.000250", Duration(start, start.Add(250*time.Microsecond)).StringFixed(6))
	require.Equal(t, "61.000000", Duration(start, start.Add(61*time.Second)).StringFixed(6))
}
