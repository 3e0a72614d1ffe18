//go:build windows

package platform

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// ExecutableSuffix is appended to helper binary names.
const ExecutableSuffix = ".exe"

// configure hides the console window the child would otherwise open.
func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
