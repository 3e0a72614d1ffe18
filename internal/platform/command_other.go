//go:build !windows

package platform

import (
	"os/exec"
	"syscall"
)

// ExecutableSuffix is appended to helper binary names.
const ExecutableSuffix = ""

// configure puts the child in its own process group so terminal signals
// aimed at the parent don't reach it.
func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
