package logs

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
)

// ReadOptions contains options for reading log files
type ReadOptions struct {
	Lines     int    // Number of lines to tail (0 means all)
	Filter    string // Regex pattern to filter lines (empty means no filter)
	SessionID string // Optional session ID to read from (empty means latest)
	Debug     bool   // Read debug.log instead of output.log
}

// ReadLog reads a session log for a command with optional tailing and filtering.
// If SessionID is specified in opts, reads from that specific session;
// otherwise from the command's latest session.
func ReadLog(command string, opts ReadOptions) ([]string, error) {
	sessionID := opts.SessionID
	if sessionID == "" {
		latest, err := GetLatestSessionID(command)
		if err != nil {
			return []string{}, nil // No session yet
		}
		sessionID = latest
	}

	logPath := GetSessionOutputPath(sessionID)
	if opts.Debug {
		logPath = GetSessionDebugPath(sessionID)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return []string{}, nil
	}

	file, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if opts.Filter != "" {
		lines, err = filterLines(lines, opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to filter lines: %w", err)
		}
	}

	if opts.Lines > 0 && len(lines) > opts.Lines {
		lines = lines[len(lines)-opts.Lines:]
	}

	return lines, nil
}

// filterLines filters lines using a regex pattern
func filterLines(lines []string, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	var filtered []string
	for _, line := range lines {
		if re.MatchString(line) {
			filtered = append(filtered, line)
		}
	}

	return filtered, nil
}
