//go:build !windows

package shutdown

import "syscall"

func init() {
	shutdownSignals = append(shutdownSignals, syscall.SIGTERM)
}
