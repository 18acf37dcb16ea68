//go:build windows

package shell

import (
	"os/exec"
	"syscall"
)

// setProcessGroup is a no-op on Windows, which has no POSIX process-group
// model; termination falls back to killing the direct child only.
func setProcessGroup(cmd *exec.Cmd) {}

func signalGroup(pid int, sig syscall.Signal) error { return nil }
