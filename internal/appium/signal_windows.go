//go:build windows

package appium

import (
	"os"
	"os/exec"
)

// Windows has no POSIX process groups or signals; termination is always a
// hard kill of the direct child.

func setSysProcAttr(_ *exec.Cmd) {}

func terminateGroup(pid int) error { return killByPid(pid) }

func killGroup(pid int) error { return killByPid(pid) }

func killByPid(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}
