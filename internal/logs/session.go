package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SessionMetadata holds metadata about one dispatcher invocation
type SessionMetadata struct {
	SessionID   string            `json:"session_id"`
	Command     string            `json:"command"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
	Duration    *time.Duration    `json:"duration,omitempty"`
	ExitCode    *int              `json:"exit_code,omitempty"`
	Success     *bool             `json:"success,omitempty"`
	Interrupted bool              `json:"interrupted"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	WorkingDir  string            `json:"working_dir,omitempty"`
}

// SessionInfo holds basic information about a session
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Command   string    `json:"command"`
	StartTime time.Time `json:"start_time"`
	LogPath   string    `json:"log_path"`
}

// GenerateSessionID generates a new UUID for a session
func GenerateSessionID() string {
	return uuid.New().String()
}

// GetSessionDirectory returns the directory path for a session
func GetSessionDirectory(sessionID string) string {
	return filepath.Join(LogDir, "sessions", sessionID)
}

// GetSessionOutputPath returns the path of the captured quiet-step output
func GetSessionOutputPath(sessionID string) string {
	return filepath.Join(GetSessionDirectory(sessionID), "output.log")
}

// GetSessionDebugPath returns the path of the structured debug log
func GetSessionDebugPath(sessionID string) string {
	return filepath.Join(GetSessionDirectory(sessionID), "debug.log")
}

// GetSessionMetadataPath returns the path to the metadata file for a session
func GetSessionMetadataPath(sessionID string) string {
	return filepath.Join(GetSessionDirectory(sessionID), "metadata.json")
}

// GetLatestSymlinkPath returns the path to the latest symlink for a command
func GetLatestSymlinkPath(command string) string {
	return filepath.Join(LogDir, "latest", command)
}

// CreateSessionDirectory creates the directory structure for a session
func CreateSessionDirectory(sessionID string) error {
	dir := GetSessionDirectory(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return nil
}

// WriteSessionMetadata writes session metadata to a JSON file
func WriteSessionMetadata(sessionID string, metadata *SessionMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(GetSessionMetadataPath(sessionID), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// ReadSessionMetadata reads session metadata from a JSON file
func ReadSessionMetadata(sessionID string) (*SessionMetadata, error) {
	data, err := os.ReadFile(GetSessionMetadataPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var metadata SessionMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &metadata, nil
}

// GetLatestSessionID resolves the latest session ID for a command by reading the symlink
func GetLatestSessionID(command string) (string, error) {
	target, err := os.Readlink(GetLatestSymlinkPath(command))
	if err != nil {
		return "", fmt.Errorf("failed to read latest symlink: %w", err)
	}

	// Target format: ../sessions/<uuid>
	return filepath.Base(target), nil
}

// CreateLatestLink creates or updates the latest symlink for a command
func CreateLatestLink(command, sessionID string) error {
	symlinkPath := GetLatestSymlinkPath(command)
	targetPath := filepath.Join("..", "sessions", sessionID)

	if err := os.MkdirAll(filepath.Dir(symlinkPath), 0755); err != nil {
		return fmt.Errorf("failed to create latest directory: %w", err)
	}

	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			return fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}

	if err := os.Symlink(targetPath, symlinkPath); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}

	return nil
}

// ListSessions lists recent sessions, sorted by start time (newest first).
// An empty command lists sessions of every command.
func ListSessions(command string, limit int) ([]SessionInfo, error) {
	entries, err := os.ReadDir(filepath.Join(LogDir, "sessions"))
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		sessionID := entry.Name()
		metadata, err := ReadSessionMetadata(sessionID)
		if err != nil {
			// Skip sessions with missing or invalid metadata
			continue
		}

		if command != "" && metadata.Command != command {
			continue
		}

		sessions = append(sessions, SessionInfo{
			SessionID: sessionID,
			Command:   metadata.Command,
			StartTime: metadata.StartTime,
			LogPath:   GetSessionOutputPath(sessionID),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}

	return sessions, nil
}

// Session is the on-disk record of one invocation: metadata, captured
// output of quiet steps and a JSON debug log.
type Session struct {
	ID       string
	metadata *SessionMetadata
	output   *Writer
	debug    *os.File
	logger   *slog.Logger
}

// StartSession creates a session directory for command and points the
// command's latest link at it.
func StartSession(command string, params map[string]string) (*Session, error) {
	if err := Setup(); err != nil {
		return nil, err
	}

	id := GenerateSessionID()
	if err := CreateSessionDirectory(id); err != nil {
		return nil, err
	}

	wd, _ := os.Getwd()
	metadata := &SessionMetadata{
		SessionID:  id,
		Command:    command,
		StartTime:  time.Now(),
		Parameters: params,
		WorkingDir: wd,
	}
	if err := WriteSessionMetadata(id, metadata); err != nil {
		return nil, err
	}

	output, err := NewWriter(GetSessionOutputPath(id))
	if err != nil {
		return nil, err
	}

	debug, err := os.OpenFile(GetSessionDebugPath(id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		output.Close()
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}

	if err := CreateLatestLink(command, id); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	logger := slog.New(slog.NewJSONHandler(debug, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("session", id, "command", command)

	return &Session{
		ID:       id,
		metadata: metadata,
		output:   output,
		debug:    debug,
		logger:   logger,
	}, nil
}

// Logger returns the session's structured debug logger
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Output returns the writer for captured child output
func (s *Session) Output() *Writer {
	return s.output
}

// Finish records the outcome in metadata.json and closes the log files
func (s *Session) Finish(exitCode int, interrupted bool) error {
	end := time.Now()
	duration := end.Sub(s.metadata.StartTime)
	success := exitCode == 0 && !interrupted

	s.metadata.EndTime = &end
	s.metadata.Duration = &duration
	s.metadata.ExitCode = &exitCode
	s.metadata.Success = &success
	s.metadata.Interrupted = interrupted

	s.logger.Info("session finished", "exit_code", exitCode, "interrupted", interrupted, "duration", duration)

	err := WriteSessionMetadata(s.ID, s.metadata)
	if cerr := s.output.Close(); err == nil {
		err = cerr
	}
	if cerr := s.debug.Close(); err == nil {
		err = cerr
	}
	return err
}
