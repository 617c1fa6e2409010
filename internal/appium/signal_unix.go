//go:build !windows

package appium

import (
	"errors"
	"os/exec"
	"syscall"
)

// setSysProcAttr places the child in its own process group so the whole
// group, including any drivers the server spawns, can be signaled together.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup asks the process group to exit voluntarily.
func terminateGroup(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

// killGroup forcefully kills the process group.
func killGroup(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func signalGroup(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		// Group already gone, nothing left to signal.
		return nil
	}
	return err
}
