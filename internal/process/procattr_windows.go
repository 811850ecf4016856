//go:build windows

package process

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
)

// groupProcAttrs makes the child the leader of a new process group,
// the Windows counterpart of Setpgid.
func groupProcAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminateProcess asks the process tree to exit.
func terminateProcess(pid int, group bool) error {
	return taskkill(pid, false)
}

// forceKillProcess terminates the process tree.
func forceKillProcess(pid int, group bool) error {
	return taskkill(pid, true)
}

// taskkill exit code 128 means the process is already gone.
func taskkill(pid int, force bool) error {
	args := []string{"/T", "/PID", strconv.Itoa(pid)}
	if force {
		args = append([]string{"/F"}, args...)
	}
	err := exec.Command("taskkill", args...).Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 128 {
		return nil
	}
	return fmt.Errorf("failed to kill process tree (PID %d): %w", pid, err)
}
