package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/slipstream/aria2d/internal/engine/rpc"
	"github.com/slipstream/aria2d/internal/pathutil"
	"github.com/slipstream/aria2d/internal/platform"
	"github.com/slipstream/aria2d/internal/startup"
)

// Session is the RPC surface the manager drives. *rpc.Session implements it.
type Session interface {
	AddURI(ctx context.Context, uris []string, opts rpc.TaskOptions) (string, error)
	TellStatus(ctx context.Context, gid string) (*rpc.Status, error)
	Pause(ctx context.Context, gid string) error
	Unpause(ctx context.Context, gid string) error
	Remove(ctx context.Context, gid string) error
	GetGlobalStat(ctx context.Context) (*rpc.GlobalStat, error)
	GetVersion(ctx context.Context) (*rpc.Version, error)
	Shutdown(ctx context.Context) error
	Close() error
}

var _ Session = (*rpc.Session)(nil)

// DialFunc makes one connection attempt to the engine.
type DialFunc func(ctx context.Context) (Session, error)

// SessionState is the manager lifecycle: Uninitialized -> Started -> ShutDown.
type SessionState int

const (
	Uninitialized SessionState = iota
	Started
	ShutDown
)

func (s SessionState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Started:
		return "started"
	case ShutDown:
		return "shut down"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

type operation string

const (
	opAdd        operation = "add download"
	opStatus     operation = "get status"
	opPause      operation = "pause"
	opResume     operation = "resume"
	opCancel     operation = "cancel"
	opGlobalStat operation = "global stat"
)

// requiresSession lists what each operation does without a live session:
// true fails with ErrNotConnected, false is a successful no-op.
var requiresSession = map[operation]bool{
	opAdd:        true,
	opStatus:     true,
	opPause:      false,
	opResume:     false,
	opCancel:     false,
	opGlobalStat: false,
}

// Options configures a Manager. Zero values select the production defaults.
type Options struct {
	BinDir     string // directory holding the engine executable
	Executable string // defaults to aria2c (aria2c.exe on Windows)

	Launcher       Launcher
	Dial           DialFunc
	Retry          startup.RetryConfig
	OnNotification rpc.NotificationHandler
	Logger         zerolog.Logger
}

// Manager owns the aria2c process and the RPC session to it.
type Manager struct {
	opts   Options
	tuning Tuning
	logger zerolog.Logger

	startMu sync.Mutex

	mu      sync.RWMutex
	state   SessionState
	session Session
	process Handle
	cleanup runtime.Cleanup
}

// New returns a manager in the Uninitialized state.
func New(opts Options) *Manager {
	m := &Manager{
		tuning: DefaultTuning,
		logger: opts.Logger,
	}

	if opts.Executable == "" {
		opts.Executable = "aria2c" + platform.ExecutableSuffix
	}
	if opts.Launcher == nil {
		opts.Launcher = NewSupervisor(opts.Logger)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = startup.DefaultRetryConfig()
	}
	if opts.Dial == nil {
		endpoint := m.tuning.Endpoint()
		logger := m.logger
		onNotify := opts.OnNotification
		opts.Dial = func(ctx context.Context) (Session, error) {
			s, err := rpc.Dial(ctx, endpoint, rpc.WithLogger(logger), rpc.WithNotificationHandler(onNotify))
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	m.opts = opts

	return m
}

// Start creates a manager and starts it. On failure no manager is returned
// and nothing is left running.
func Start(ctx context.Context, opts Options) (*Manager, error) {
	m := New(opts)
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Start spawns aria2c and connects to its RPC endpoint, retrying while the
// process binds its listener. If the connection cannot be established the
// process is terminated before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	switch m.State() {
	case Started:
		return ErrAlreadyStarted
	case ShutDown:
		return ErrShutDown
	}

	path := pathutil.BinaryPath(m.opts.BinDir, m.opts.Executable)
	proc, err := m.opts.Launcher.Spawn(ctx, path, m.tuning.Args())
	if err != nil {
		return err
	}

	m.logger.Info().Str("path", path).Msg("aria2c started, waiting for RPC endpoint")

	var session Session
	err = startup.WithRetry(ctx, "aria2 rpc connect", m.opts.Retry, func(ctx context.Context) error {
		s, err := m.opts.Dial(ctx)
		if err != nil {
			return err
		}
		session = s
		return nil
	}, &m.logger)
	if err != nil {
		proc.Terminate()
		return fmt.Errorf("failed to initialize aria2: %w", err)
	}

	if v, err := session.GetVersion(ctx); err == nil {
		m.logger.Info().Str("version", v.Version).Strs("features", v.EnabledFeatures).Msg("connected to aria2")
	} else {
		m.logger.Warn().Err(err).Msg("failed to query aria2 version")
	}

	m.mu.Lock()
	m.state = Started
	m.session = session
	m.process = proc
	// Kill the process if the manager is dropped without Shutdown.
	m.cleanup = runtime.AddCleanup(m, func(h Handle) { h.Terminate() }, proc)
	m.mu.Unlock()

	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// acquire returns the live session for op. A nil session with a nil error
// means op should silently do nothing.
func (m *Manager) acquire(op operation) (Session, error) {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	if session != nil {
		return session, nil
	}
	if requiresSession[op] {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConnected)
	}
	return nil, nil
}

// AddDownload queues url for download into dir and returns the task GID.
// An empty filename lets aria2 choose one.
func (m *Manager) AddDownload(ctx context.Context, url, dir, filename string) (string, error) {
	session, err := m.acquire(opAdd)
	if err != nil {
		return "", err
	}

	gid, err := session.AddURI(ctx, []string{url}, m.tuning.TaskOptions(dir, filename))
	if err != nil {
		return "", fmt.Errorf("%s: %w", opAdd, err)
	}

	m.logger.Info().Str("gid", gid).Str("url", url).Str("dir", dir).Msg("download added")
	return gid, nil
}

// GetStatus returns a fresh progress snapshot for gid.
func (m *Manager) GetStatus(ctx context.Context, gid string) (DownloadProgress, error) {
	session, err := m.acquire(opStatus)
	if err != nil {
		return DownloadProgress{}, err
	}

	status, err := session.TellStatus(ctx, gid)
	if err != nil {
		return DownloadProgress{}, fmt.Errorf("%s %s: %w", opStatus, gid, err)
	}

	return Translate(gid, status), nil
}

// Pause pauses gid. Without a session it does nothing.
func (m *Manager) Pause(ctx context.Context, gid string) error {
	return m.control(opPause, gid, func(s Session) error { return s.Pause(ctx, gid) })
}

// Resume resumes gid. Without a session it does nothing.
func (m *Manager) Resume(ctx context.Context, gid string) error {
	return m.control(opResume, gid, func(s Session) error { return s.Unpause(ctx, gid) })
}

// Cancel removes gid from the engine. Without a session it does nothing.
func (m *Manager) Cancel(ctx context.Context, gid string) error {
	return m.control(opCancel, gid, func(s Session) error { return s.Remove(ctx, gid) })
}

func (m *Manager) control(op operation, gid string, fn func(Session) error) error {
	session, err := m.acquire(op)
	if session == nil {
		return err
	}

	if err := fn(session); err != nil {
		return fmt.Errorf("%s %s: %w", op, gid, err)
	}

	m.logger.Debug().Str("gid", gid).Str("operation", string(op)).Msg("download updated")
	return nil
}

// GlobalStat returns the aggregate download speed (bytes/sec) and the number
// of active downloads. Without a session it returns zeros.
func (m *Manager) GlobalStat(ctx context.Context) (speed, active uint64, err error) {
	session, err := m.acquire(opGlobalStat)
	if session == nil {
		return 0, 0, err
	}

	stat, err := session.GetGlobalStat(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", opGlobalStat, err)
	}
	return uint64(stat.DownloadSpeed), uint64(stat.NumActive), nil
}

// Shutdown asks aria2 to exit, closes the session and kills the process.
// It is idempotent and never fails; errors are only logged.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.state != Started {
		m.mu.Unlock()
		return
	}
	session, proc := m.session, m.process
	m.session, m.process = nil, nil
	m.state = ShutDown
	m.cleanup.Stop()
	m.mu.Unlock()

	if session != nil {
		if err := session.Shutdown(ctx); err != nil {
			m.logger.Debug().Err(err).Msg("aria2 shutdown call failed")
		}
		if err := session.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("failed to close aria2 session")
		}
	}
	if proc != nil {
		proc.Terminate()
	}

	m.logger.Info().Msg("aria2 manager shut down")
}
