// Package logging builds the process logger: console, log file, optional
// Graylog and OTel sinks, with system state stamped on every record.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, start time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, start.Format("20060102_150405")),
	)
}
