package logs

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Writer appends captured child output to a log file. Several children
// may share one Writer, so writes are serialized.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	logPath string
}

// NewWriter opens (or creates) the log file at logPath for appending
func NewWriter(logPath string) (*Writer, error) {
	if err := rotateIfNeeded(logPath); err != nil {
		return nil, fmt.Errorf("failed to rotate log: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Writer{file: file, logPath: logPath}, nil
}

// Write appends p to the log file, rotating it once it grows past MaxLogSize
func (w *Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	n, err = w.file.Write(p)
	if err != nil {
		return n, err
	}

	info, err := w.file.Stat()
	if err != nil || info.Size() < MaxLogSize {
		return n, nil
	}
	if err := w.reopenRotated(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log rotation failed: %v\n", err)
	}
	return n, nil
}

// Path returns the path of the active log file
func (w *Writer) Path() string {
	return w.logPath
}

// Close closes the log file
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) reopenRotated() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil
	if err := rotateLog(w.logPath); err != nil {
		return err
	}
	file, err := os.OpenFile(w.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to reopen log file: %w", err)
	}
	w.file = file
	return nil
}

// rotateIfNeeded checks if the log file exceeds MaxLogSize and rotates it if necessary
func rotateIfNeeded(logPath string) error {
	info, err := os.Stat(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	if info.Size() >= MaxLogSize {
		return rotateLog(logPath)
	}

	return nil
}

// rotateLog rotates a log file by renaming it with a timestamp
func rotateLog(logPath string) error {
	rotatedPath := GetRotatedLogPath(logPath, time.Now().UnixNano())

	if err := os.Rename(logPath, rotatedPath); err != nil {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	return nil
}
