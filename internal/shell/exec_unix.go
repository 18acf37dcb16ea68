//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// setProcessGroup configures cmd so it (and any children it spawns) forms
// its own process group, letting us signal the whole group at once.
// Grounded on gsh's internal/bash/exec_unix.go NewProcessGroupExecHandler,
// with the terminal foreground-group (tcsetpgrp/tcgetpgrp) dance dropped:
// the broker never owns a real controlling terminal, it only ever needs
// to signal the group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup sends sig to the process group rooted at pid.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
