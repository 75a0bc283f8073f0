package configsqldb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	devenv "palmstat-backend/dev/env"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Struct describes how to reach the warehouse database.
//
// driver is one of "sqlite" (default), "libsql", "postgres" (lib/pq) or "pgx".
type Struct struct {
	Driver string `json:"driver"`
	Dsn    string `json:"dsn"`
	// MergeMode is one of "merge" (default), "insert", "staging" or "update".
	MergeMode string `json:"merge_mode"`
}

func (config Struct) DriverName() string {
	if config.Driver == "" {
		return "sqlite"
	}
	return config.Driver
}

func (config Struct) OpenDB() (*sqlx.DB, error) {
	if config.Dsn == "" {
		return nil, fmt.Errorf("a database dsn was not specified")
	}

	switch config.DriverName() {
	case "sqlite":
		return openSqlite(config.Dsn)
	case "libsql", "postgres", "pgx":
		return sqlx.Open(config.DriverName(), config.Dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", config.Driver)
	}
}

func openSqlite(dsn string) (*sqlx.DB, error) {
	dbpath := dsn
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		resolved, err := devenv.ResolvePath(dsn)
		if err != nil {
			return nil, err
		}
		dbpath = resolved

		err = os.MkdirAll(filepath.Dir(dbpath), 0777)
		if err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if dbpath != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}
