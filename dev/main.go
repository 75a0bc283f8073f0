package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

type step struct {
	name string
	run  func() error
	skip bool
}

func resetState(recreate bool) error {
	if _, err := os.Stat("go.mod"); errors.Is(err, os.ErrNotExist) {
		return errors.New("run the dev setup from the repository root, next to go.mod")
	}
	if recreate {
		err := os.RemoveAll("dev/.state")
		if err != nil {
			return err
		}
	}
	return os.MkdirAll("dev/.state", 0777)
}

func main() {
	recreate := flag.Bool("recreate", false, "wipe dev/.state before setting up")
	localStack := flag.Bool("local-stack", true, "start the local ftp and smtp servers with docker compose")
	flag.Parse()

	steps := []step{
		{name: "state directory", run: func() error { return resetState(*recreate) }},
		{name: "local stack", run: CreateLocalStack, skip: !*localStack},
		{name: "warehouse database", run: CreateWarehouseDB},
		{name: "dev config", run: WriteDevConfig},
	}
	for _, s := range steps {
		if s.skip {
			slog.Info("skipped", "step", s.name)
			continue
		}
		start := time.Now()
		err := s.run()
		if err != nil {
			slog.Error("dev setup failed", "step", s.name, "err", err)
			os.Exit(1)
		}
		slog.Info("done", "step", s.name, "took", time.Since(start).Round(time.Millisecond))
	}

	PrintConfigLocations()
}
