package telemetry

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// LogFormatEnv set to "json" switches the default logger to JSON lines, for
// scheduled runs whose stderr is collected by a log shipper.
const LogFormatEnv = "PALMSTAT_LOG_FORMAT"

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func newHandler(w io.Writer, format string, level slog.Level, color bool) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !color,
	})
}

// InitSlog installs the default logger on stderr, debug records are only
// kept when verbose is set.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := newHandler(os.Stderr, os.Getenv(LogFormatEnv), level, isTerminal(os.Stderr))
	slog.SetDefault(slog.New(handler))
}
