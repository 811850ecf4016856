package dispatch

import (
	"context"
	"fmt"

	"devrun.dev/internal/process"
	"devrun.dev/internal/shutdown"
)

// Exit statuses returned by Execute.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Processes is the part of process.Registry a Runner spawns through.
type Processes interface {
	Start(command string, opts ...process.SpawnOption) (*process.Record, error)
	Run(ctx context.Context, command string, opts ...process.SpawnOption) (int, error)
	Interactive(ctx context.Context, command string, opts ...process.SpawnOption) (int, error)
	RunCleanup(ctx context.Context, command string, opts ...process.SpawnOption) (int, error)
	WaitForComplete(ctx context.Context) error
	KillAll() process.Report
}

// Hooks receives the cleanup callbacks of the commands that run.
// shutdown.Coordinator satisfies it.
type Hooks interface {
	Register(name string, fn shutdown.Callback)
}

// Notifier shows progress to the operator. notice.Printer satisfies it.
type Notifier interface {
	Status(msg string)
	Light(msg string)
	Success(msg string)
	Failure(msg string)
}

// StepError is a blocking step that exited non-zero.
type StepError struct {
	Command  string
	ExitCode int
}

func (e *StepError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}
