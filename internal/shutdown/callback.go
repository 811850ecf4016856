package shutdown

import (
	"context"
	"fmt"

	"devrun.dev/internal/process"
)

// Callback is a cleanup action run before the registry is killed. The
// returned text goes into the shutdown report verbatim.
type Callback func(ctx context.Context) (string, error)

// CleanupRunner runs a blocking command while shutdown is in progress.
type CleanupRunner interface {
	RunCleanup(ctx context.Context, command string, opts ...process.SpawnOption) (int, error)
}

// CommandCallback runs command and reports message when it exits 0.
func CommandCallback(runner CleanupRunner, command, message string, opts ...process.SpawnOption) Callback {
	return func(ctx context.Context) (string, error) {
		code, err := runner.RunCleanup(ctx, command, opts...)
		if err != nil {
			return "", err
		}
		if code != 0 {
			return "", fmt.Errorf("%q exited with code %d", command, code)
		}
		return message, nil
	}
}
