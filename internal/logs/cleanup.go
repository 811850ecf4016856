package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SessionRetention defines retention policies for session cleanup
type SessionRetention struct {
	MaxSessions int           // Maximum number of sessions to keep per command (0 = unlimited)
	MaxAge      time.Duration // Maximum age of sessions to keep (0 = unlimited)
}

// DefaultRetention provides default retention policy
var DefaultRetention = SessionRetention{
	MaxSessions: 100,
	MaxAge:      7 * 24 * time.Hour, // 7 days
}

// CleanupOldSessions removes old sessions of a command according to the
// retention policy. Returns the number of sessions deleted and any error
func CleanupOldSessions(command string, retention SessionRetention) (int, error) {
	sessions, err := ListSessions(command, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		return 0, nil
	}

	// Oldest first
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})

	var toDelete []string
	marked := make(map[string]bool)
	now := time.Now()

	if retention.MaxAge > 0 {
		for _, session := range sessions {
			if now.Sub(session.StartTime) > retention.MaxAge {
				toDelete = append(toDelete, session.SessionID)
				marked[session.SessionID] = true
			}
		}
	}

	// Keep the most recent MaxSessions
	if retention.MaxSessions > 0 && len(sessions) > retention.MaxSessions {
		for _, session := range sessions[:len(sessions)-retention.MaxSessions] {
			if !marked[session.SessionID] {
				toDelete = append(toDelete, session.SessionID)
			}
		}
	}

	deleted := 0
	for _, sessionID := range toDelete {
		if err := deleteSession(sessionID); err != nil {
			// Log error but continue with other sessions
			fmt.Fprintf(os.Stderr, "Warning: failed to delete session %s: %v\n", sessionID, err)
		} else {
			deleted++
		}
	}

	return deleted, nil
}

// CleanupAllSessions cleans up sessions for all commands according to the retention policy
func CleanupAllSessions(retention SessionRetention) (int, error) {
	sessionsDir := filepath.Join(LogDir, "sessions")

	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	commands := make(map[string]bool)
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

		commands[metadata.Command] = true
	}

	totalDeleted := 0
	for command := range commands {
		deleted, err := CleanupOldSessions(command, retention)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to cleanup sessions for %s: %v\n", command, err)
		}
		totalDeleted += deleted
	}

	return totalDeleted, nil
}

// deleteSession deletes a session directory and all its contents
func deleteSession(sessionID string) error {
	sessionDir := GetSessionDirectory(sessionID)
	return os.RemoveAll(sessionDir)
}
