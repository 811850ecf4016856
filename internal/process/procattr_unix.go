//go:build unix

package process

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// groupProcAttrs makes the child the leader of a new process group
// (PGID == PID). Everything it forks inherits the group, so one signal to
// -PID reaches the whole tree. It also keeps the terminal's SIGINT away from
// the child; teardown order is decided by the shutdown sequence instead.
func groupProcAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// terminateProcess asks a process (or its whole group) to exit.
func terminateProcess(pid int, group bool) error {
	return signalProcess(pid, group, unix.SIGTERM)
}

// forceKillProcess kills a process (or its whole group) outright.
func forceKillProcess(pid int, group bool) error {
	return signalProcess(pid, group, unix.SIGKILL)
}

func signalProcess(pid int, group bool, sig unix.Signal) error {
	target := pid
	if group {
		target = -pid
	}
	if err := unix.Kill(target, sig); err != nil {
		// ESRCH: already gone, which is what we wanted.
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to signal %d with %s: %w", target, unix.SignalName(sig), err)
	}
	return nil
}
