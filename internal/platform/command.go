// Package platform provides OS-specific process launch helpers.
package platform

import (
	"os"
	"os/exec"
)

// Command builds an *exec.Cmd for a long-lived helper process with
// OS-specific attributes applied. It takes no context: the
// child outlives whatever request caused it to be spawned.
func Command(path string, args ...string) *exec.Cmd {
	cmd := exec.Command(path, args...)
	configure(cmd)
	return cmd
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
