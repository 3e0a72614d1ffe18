package pathutil

import (
	"os"
	"path/filepath"
)

// BinDir returns the directory bundled helper binaries live in. An explicit
// dir wins; otherwise it is the "bin" directory next to the running executable.
func BinDir(explicit string) string {
	if explicit != "" {
		return filepath.Clean(explicit)
	}

	exe, err := os.Executable()
	if err != nil {
		return "bin"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "bin")
}

// BinaryPath joins the bin directory and the executable name.
func BinaryPath(binDir, name string) string {
	return filepath.Join(BinDir(binDir), name)
}
