package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const handshakeTimeout = 5 * time.Second

type response struct {
	result json.RawMessage
	err    *Error
}

// Session is a single WebSocket connection to aria2. It is safe for
// concurrent use: each call is matched to its response by request id.
type Session struct {
	conn     *websocket.Conn
	logger   zerolog.Logger
	onNotify NotificationHandler

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan response

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithNotificationHandler registers a handler for aria2 event notifications.
func WithNotificationHandler(h NotificationHandler) Option {
	return func(s *Session) {
		s.onNotify = h
	}
}

// Dial makes a single connection attempt to endpoint.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Session, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s := &Session{
		conn:    conn,
		logger:  zerolog.Nop(),
		pending: make(map[string]chan response),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.readLoop()
	return s, nil
}

// Close closes the connection. Pending calls fail with ErrClosed.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeErr = ErrClosed
		s.mu.Unlock()

		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the session is closed, locally or by the engine.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) fail(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeErr = fmt.Errorf("%w: %v", ErrClosed, cause)
		s.mu.Unlock()

		s.conn.Close()
		close(s.closed)
	})
}

func (s *Session) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	return ErrClosed
}

func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Warn().Err(err).Msg("aria2 rpc connection lost")
			}
			s.fail(err)
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("discarding malformed rpc message")
			continue
		}

		id := msg.id()
		if id == "" {
			s.notify(&msg)
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()

		if !ok {
			s.logger.Debug().Str("id", id).Msg("response for unknown request")
			continue
		}
		ch <- response{result: msg.Result, err: msg.Error}
	}
}

func (s *Session) notify(msg *envelope) {
	if msg.Method == "" || s.onNotify == nil {
		return
	}
	n := Notification{Method: msg.Method}
	if len(msg.Params) > 0 {
		n.GID = msg.Params[0].GID
	}
	s.onNotify(n)
}

// call sends method and decodes the result into out (if non-nil).
func (s *Session) call(ctx context.Context, method string, params []any, out any) error {
	id := uuid.NewString()
	ch := make(chan response, 1)

	s.mu.Lock()
	if s.closeErr != nil {
		err := s.closeErr
		s.mu.Unlock()
		return err
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	req := request{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	s.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Time{})
	}
	err := s.conn.WriteJSON(req)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: failed to send request: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return resp.err
		}
		if out == nil || len(resp.result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.result, out); err != nil {
			return fmt.Errorf("%s: failed to decode result: %w", method, err)
		}
		return nil
	case <-s.closed:
		return s.err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddURI queues a new download and returns its GID.
func (s *Session) AddURI(ctx context.Context, uris []string, opts TaskOptions) (string, error) {
	var gid string
	if err := s.call(ctx, "aria2.addUri", []any{uris, opts.params()}, &gid); err != nil {
		return "", err
	}
	if gid == "" {
		return "", errors.New("aria2.addUri: empty gid in response")
	}
	return gid, nil
}

// TellStatus returns the engine's status record for gid.
func (s *Session) TellStatus(ctx context.Context, gid string) (*Status, error) {
	var status Status
	if err := s.call(ctx, "aria2.tellStatus", []any{gid}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Pause pauses gid.
func (s *Session) Pause(ctx context.Context, gid string) error {
	return s.call(ctx, "aria2.pause", []any{gid}, nil)
}

// Unpause resumes a paused gid.
func (s *Session) Unpause(ctx context.Context, gid string) error {
	return s.call(ctx, "aria2.unpause", []any{gid}, nil)
}

// Remove stops gid and moves it to the removed state.
func (s *Session) Remove(ctx context.Context, gid string) error {
	return s.call(ctx, "aria2.remove", []any{gid}, nil)
}

// GetGlobalStat returns aggregate transfer statistics.
func (s *Session) GetGlobalStat(ctx context.Context) (*GlobalStat, error) {
	var stat GlobalStat
	if err := s.call(ctx, "aria2.getGlobalStat", nil, &stat); err != nil {
		return nil, err
	}
	return &stat, nil
}

// GetVersion returns the engine version.
func (s *Session) GetVersion(ctx context.Context) (*Version, error) {
	var v Version
	if err := s.call(ctx, "aria2.getVersion", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Shutdown asks aria2 to exit.
func (s *Session) Shutdown(ctx context.Context) error {
	return s.call(ctx, "aria2.shutdown", nil, nil)
}
