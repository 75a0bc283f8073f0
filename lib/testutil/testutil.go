package testutil

import (
	"fmt"
	"strings"
	"testing"

	devenv "palmstat-backend/dev/env"
	"palmstat-backend/lib/telemetry"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type DBParams struct {
	// names the test service in exported telemetry
	Name   string
	// applied once, "already exists" errors are ignored so file databases
	// can be reused between runs
	Schema string
	// ":memory:" when empty, "<dev_state>" paths are resolved
	Path   string
	// statements run after Schema, in order
	Seed   []string
}

// OpenDB opens a sqlite database for the duration of the test.
func OpenDB(t testing.TB, params DBParams) *sqlx.DB {
	t.Helper()
	t.Cleanup(telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name)))

	path := params.Path
	if path == "" {
		path = ":memory:"
	}
	path, err := devenv.ResolvePath(path)
	if err != nil {
		t.Fatal(err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	// each connection to :memory: gets its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if params.Schema != "" {
		_, err = db.Exec(params.Schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatalf("apply schema: %v", err)
		}
	}
	for _, stmt := range params.Seed {
		_, err = db.Exec(stmt)
		if err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return db
}
