//go:build unix

package shutdown

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"devrun.dev/internal/process"
)

func TestInterruptDuringBlockingRun(t *testing.T) {
	reg := process.NewRegistry(process.Options{Shell: "/bin/sh", KillGrace: time.Second})
	c, _ := newTestCoordinator(t, reg)

	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for reg.Len() == 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		c.Interrupt(os.Interrupt)
	}()

	runErr := make(chan error, 1)
	code := c.Run(context.Background(), func(ctx context.Context) int {
		_, err := reg.Run(ctx, "sleep 30")
		runErr <- err
		return 1
	})

	if code != ExitHandled {
		t.Errorf("Run() = %d, want %d", code, ExitHandled)
	}
	select {
	case err := <-runErr:
		if !errors.Is(err, process.ErrInterrupted) {
			t.Errorf("blocking run returned %v, want ErrInterrupted", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocking run was not interrupted")
	}

	text := c.Shutdown().Text()
	if !strings.Contains(text, "1 process killed") {
		t.Errorf("expected one process killed:\n%s", text)
	}
	if reg.Len() != 0 {
		t.Errorf("registry not empty after shutdown: %d", reg.Len())
	}
}

func TestCommandCallbackRunsWhileSealed(t *testing.T) {
	reg := process.NewRegistry(process.Options{Shell: "/bin/sh"})
	c, _ := newTestCoordinator(t, reg)

	c.Register("exec_kill", CommandCallback(reg, "exit 0", "Killed all spawned processes in docker image.\n"))

	text := c.Shutdown().Text()
	if !strings.Contains(text, "Killed all spawned processes in docker image.") {
		t.Errorf("cleanup command did not run after seal:\n%s", text)
	}
}
