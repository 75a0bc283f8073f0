package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	devenv "palmstat-backend/dev/env"
)

// FilesystemOutput writes each dumped message to <dir>/<run>/<id>.http, where
// <run> is the time the output was created. Only the newest `keep` run
// directories survive.
type FilesystemOutput struct {
	runDir string
}

const runDirLayout = "20060102T150405"

func NewFilesystemOutput(dir string, keep int) (FilesystemOutput, error) {
	dir, err := devenv.ResolvePath(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	runDir := filepath.Join(dir, time.Now().UTC().Format(runDirLayout))
	err = os.MkdirAll(runDir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	pruneRuns(dir, keep)
	return FilesystemOutput{runDir: runDir}, nil
}

func pruneRuns(dir string, keep int) {
	if keep <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("failed to list http dumps", "dir", dir, "err", err)
		return
	}
	var runs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(runDirLayout, e.Name()); err == nil {
			runs = append(runs, e.Name())
		}
	}
	if len(runs) <= keep {
		return
	}
	slices.Sort(runs)
	for _, name := range runs[:len(runs)-keep] {
		err := os.RemoveAll(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("failed to prune http dumps", "run", name, "err", err)
		}
	}
}

func (o FilesystemOutput) Dir() string {
	return o.runDir
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.runDir, id+".http"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write http dump", "id", id, "err", err)
	}
}
