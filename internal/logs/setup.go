package logs

import (
	"fmt"
	"os"
	"path/filepath"

	"devrun.dev/internal/dirs"
)

const (
	// MaxLogSize is the maximum size of an output log before rotation (10MB)
	MaxLogSize = 10 * 1024 * 1024
)

// LogDir is the directory where all logs are stored
var LogDir = filepath.Join(dirs.StateDir, "logs")

// Setup initializes the log directory structure
// Creates the log directory and a .gitignore file to ignore logs
func Setup() error {
	if err := os.MkdirAll(LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	gitignorePath := filepath.Join(filepath.Dir(LogDir), ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(gitignorePath, []byte("logs/\n"), 0644); err != nil {
			return fmt.Errorf("failed to create .gitignore: %w", err)
		}
	}

	return nil
}

// GetRotatedLogPath returns the path for a rotated log file with timestamp
func GetRotatedLogPath(logPath string, timestamp int64) string {
	return fmt.Sprintf("%s.%d", logPath, timestamp)
}
