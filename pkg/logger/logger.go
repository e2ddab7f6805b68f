package logger

import (
	"log"
	"log/slog"
)

// New returns a stdlib *log.Logger that forwards lines to base at error
// level, tagged with component. Useful for APIs such as http.Server.ErrorLog
// that only accept *log.Logger.
func New(base *slog.Logger, component string) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelError)
}
