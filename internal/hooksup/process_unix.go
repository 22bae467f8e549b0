//go:build unix

package hooksup

import (
	"os/exec"
	"syscall"
)

// detach configures cmd to survive the spawning shell: a new session via
// setsid, so it is not a child of the terminal's process group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

func terminateProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
