package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanupOldLogs deletes daily log files in dir last written more than
// retentionDays ago. The file currently being written is never touched.
// Zero or negative retention keeps everything.
func CleanupOldLogs(logger *slog.Logger, dir, current string, retentionDays int) {
	if retentionDays <= 0 || dir == "" {
		return
	}
	if logger == nil {
		logger = NewNop()
	}
	matches, err := filepath.Glob(filepath.Join(dir, LogFilePattern))
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keep := filepath.Clean(current)
	for _, path := range matches {
		if filepath.Clean(path) == keep {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old log file not removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old log file stays on disk"),
			)
			continue
		}
		logger.Debug("old log file removed", String("path", path), String(FieldEventType, "log_pruned"))
	}
}
