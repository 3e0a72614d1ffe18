package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/slipstream/aria2d/internal/platform"
)

// Handle is a running engine process owned by the manager.
type Handle interface {
	// Terminate kills the process. It is idempotent and never fails.
	Terminate()
}

// Launcher starts the engine executable at path with args.
type Launcher interface {
	Spawn(ctx context.Context, path string, args []string) (Handle, error)
}

// Supervisor launches engine processes through the platform command helper.
type Supervisor struct {
	logger zerolog.Logger
}

var _ Launcher = (*Supervisor)(nil)

// NewSupervisor creates a process supervisor.
func NewSupervisor(logger zerolog.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Spawn checks that path exists and starts it. The process is not tied to
// ctx; only Terminate stops it.
func (s *Supervisor) Spawn(ctx context.Context, path string, args []string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}
	if !platform.FileExists(path) {
		return nil, &LaunchError{Path: path, Err: os.ErrNotExist}
	}

	cmd := platform.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	p := &Process{
		cmd:    cmd,
		done:   make(chan struct{}),
		logger: s.logger.With().Int("pid", cmd.Process.Pid).Logger(),
	}
	go p.wait()

	p.logger.Info().Str("path", path).Msg("engine process started")
	return p, nil
}

// Process is a child started by Supervisor.
type Process struct {
	cmd    *exec.Cmd
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger

	exitErr error
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	<-p.done
	return p.exitErr
}

func (p *Process) wait() {
	p.exitErr = p.cmd.Wait()
	close(p.done)

	// In daemon mode the launched process forks and exits right away.
	p.logger.Debug().AnErr("exit", p.exitErr).Msg("engine process exited")
}

// Terminate kills the process if it is still running.
func (p *Process) Terminate() {
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug().Err(err).Msg("failed to kill engine process")
			return
		}
		p.logger.Info().Msg("engine process terminated")
	})
}
