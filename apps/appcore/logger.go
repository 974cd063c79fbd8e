package appcore

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// NewLogger creates the application logger, which writes to w at the given
// level.  Log lines carry a timestamp and the prefix.  The second result is
// the same logger for calls such as Fatal that slog doesn't have.
func NewLogger(w io.Writer, level slog.Level, prefix string) (*slog.Logger, *log.Logger) {
	handler := log.NewWithOptions(w, log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
		Prefix:          prefix,
	})
	return slog.New(handler), handler
}
