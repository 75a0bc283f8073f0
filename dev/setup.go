package main

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	devenv "palmstat-backend/dev/env"
	"palmstat-backend/services/mpob/db"

	"github.com/jmoiron/sqlx"
)

func runIn(dir, name string, args ...string) error {
	c := exec.Command(name, args...)
	c.Dir = dir
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	slog.Info("exec", "dir", dir, "cmd", strings.Join(append([]string{name}, args...), " "))
	return c.Run()
}

// CreateLocalStack starts the ftp and smtp servers the collector archives
// to and mails through in development.
func CreateLocalStack() error {
	return runIn(filepath.Join("dev", "local_stack"), "docker", "compose", "up", "-d", "--wait")
}

func createDb(filename, schema string) error {
	dbPath, err := devenv.ResolvePath(filepath.Join("<dev_state>", filename))
	if err != nil {
		return err
	}

	_, err = os.Stat(dbPath)
	if err == nil {
		slog.Info("warehouse database exists", "path", dbPath)
		return nil
	}

	slog.Info("creating warehouse database", "path", dbPath)
	out, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Exec(schema)
	return err
}

func CreateWarehouseDB() error {
	return createDb("palmstat.db", db.Schema)
}

// WriteDevConfig writes a config.json5 pointing at the local stack unless
// one exists already.
func WriteDevConfig() error {
	_, err := os.Stat("config.json5")
	if err == nil {
		slog.Info("keeping existing config.json5")
		return nil
	}
	return os.WriteFile("config.json5", []byte(`{
  mpob: { timeout_seconds: 30 },
  database: { driver: "sqlite", dsn: "<dev_state>/palmstat.db" },
  ftp: { host: "localhost", port: 2121, username: "palmstat", password: "palmstat", base_dir: "/mpob" },
  smtp: { server: "localhost", port: 1025, email_address: "palmstat@localhost", recipients: ["dev@localhost"] },
  temp_dir: "<dev_state>/temp",
  keep_extracts: true,
}
`), 0600)
}

func PrintConfigLocations() {
	slog.Info("put MPOB_USERNAME and MPOB_PASSWORD in .env to scrape the session gated reports, the fake smtp inbox is served at http://localhost:1080.")
}
