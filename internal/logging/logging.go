package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}

// SessionContext returns a ContextProvider tagging every record with the
// session id and whatever dynamic attributes extra reports.
func SessionContext(sessionID string, extra func() []slog.Attr) ContextProvider {
	return func() []slog.Attr {
		attrs := []slog.Attr{slog.String("session", sessionID)}
		if extra != nil {
			attrs = append(attrs, extra()...)
		}
		return attrs
	}
}
