package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinDir_Explicit(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Clean(dir), BinDir(dir+string(os.PathSeparator)))
}

func TestBinDir_NextToExecutable(t *testing.T) {
	got := BinDir("")
	assert.Equal(t, "bin", filepath.Base(got))
}

func TestBinaryPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/opt/aria2d/bin", "aria2c"), BinaryPath("/opt/aria2d/bin", "aria2c"))
}
