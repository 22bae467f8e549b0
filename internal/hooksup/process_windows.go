//go:build windows

package hooksup

import (
	"os"
	"os/exec"
	"syscall"
)

const (
	detachedProcess   = 0x00000008
	createNewProcGrp  = 0x00000200
)

// detach configures cmd to survive the spawning shell on Windows: detached
// from the console and in its own process group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: detachedProcess | createNewProcGrp,
	}
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func terminateProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
