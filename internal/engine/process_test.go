//go:build !windows

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/aria2d/internal/testutil"
)

// writeFakeEngine creates an executable that records its arguments and then
// stays alive until killed.
func writeFakeEngine(t *testing.T) (path, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "aria2c")
	argsFile = filepath.Join(dir, "args.txt")

	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\nexec sleep 30\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, argsFile
}

func TestSupervisor_SpawnAndTerminate(t *testing.T) {
	path, argsFile := writeFakeEngine(t)
	s := NewSupervisor(testutil.NewTestLogger(t))

	h, err := s.Spawn(context.Background(), path, DefaultTuning.Args())
	require.NoError(t, err)
	p := h.(*Process)
	assert.Positive(t, p.Pid())

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(argsFile)
		return err == nil && strings.Contains(string(data), "--rpc-listen-port=6800")
	}, 5*time.Second, 20*time.Millisecond)

	p.Terminate()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after Terminate")
	}
	assert.Error(t, p.Err())

	// Idempotent.
	p.Terminate()
}

func TestSupervisor_NotTiedToContext(t *testing.T) {
	path, _ := writeFakeEngine(t)
	s := NewSupervisor(testutil.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	h, err := s.Spawn(ctx, path, nil)
	require.NoError(t, err)
	p := h.(*Process)
	defer p.Terminate()

	cancel()
	select {
	case <-p.Done():
		t.Fatal("process exited when the spawn context was cancelled")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSupervisor_MissingExecutable(t *testing.T) {
	s := NewSupervisor(testutil.NopLogger())
	path := filepath.Join(t.TempDir(), "aria2c")

	_, err := s.Spawn(context.Background(), path, nil)
	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, path, launchErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSupervisor_NotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aria2c")
	require.NoError(t, os.WriteFile(path, []byte("not a program"), 0o644))
	s := NewSupervisor(testutil.NopLogger())

	_, err := s.Spawn(context.Background(), path, nil)
	var launchErr *LaunchError
	assert.ErrorAs(t, err, &launchErr)
}

func TestSupervisor_ExitedProcessTerminate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aria2c")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	s := NewSupervisor(testutil.NopLogger())

	h, err := s.Spawn(context.Background(), path, nil)
	require.NoError(t, err)
	p := h.(*Process)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.NoError(t, p.Err())
	p.Terminate()
}
