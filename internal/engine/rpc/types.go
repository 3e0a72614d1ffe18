// Package rpc implements the aria2 JSON-RPC protocol over a WebSocket connection.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// DefaultEndpoint is the loopback address aria2c listens on with --enable-rpc.
const DefaultEndpoint = "ws://127.0.0.1:6800/jsonrpc"

// ErrClosed is returned by calls made on, or interrupted by, a closed session.
var ErrClosed = errors.New("rpc session closed")

// Error is a failure reported by aria2 itself, as opposed to a transport failure.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("aria2 error %d: %s", e.Code, e.Message)
}

// Task states reported by aria2.tellStatus.
const (
	StateActive   = "active"
	StateWaiting  = "waiting"
	StatePaused   = "paused"
	StateError    = "error"
	StateComplete = "complete"
	StateRemoved  = "removed"
)

// Uint64 decodes aria2's decimal-string integers. Plain JSON numbers are
// accepted too; an empty string decodes to zero.
type Uint64 uint64

func (u *Uint64) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	if s == "" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*u = Uint64(v)
	return nil
}

// TaskOptions are the per-download options sent with aria2.addUri.
type TaskOptions struct {
	Dir                    string
	Out                    string
	Split                  int
	MaxConnectionPerServer int
}

// params renders the options the way aria2 expects them: a flat object of
// string values, omitting anything unset.
func (o TaskOptions) params() map[string]string {
	opts := make(map[string]string)
	if o.Dir != "" {
		opts["dir"] = o.Dir
	}
	if o.Out != "" {
		opts["out"] = o.Out
	}
	if o.Split > 0 {
		opts["split"] = strconv.Itoa(o.Split)
	}
	if o.MaxConnectionPerServer > 0 {
		opts["max-connection-per-server"] = strconv.Itoa(o.MaxConnectionPerServer)
	}
	return opts
}

// Status is the subset of aria2.tellStatus this package decodes.
type Status struct {
	GID             string `json:"gid"`
	Status          string `json:"status"`
	TotalLength     Uint64 `json:"totalLength"`
	CompletedLength Uint64 `json:"completedLength"`
	DownloadSpeed   Uint64 `json:"downloadSpeed"`
	UploadSpeed     Uint64 `json:"uploadSpeed"`
	Connections     Uint64 `json:"connections"`
	ErrorCode       string `json:"errorCode"`
	ErrorMessage    string `json:"errorMessage"`
	Dir             string `json:"dir"`
}

// GlobalStat is the result of aria2.getGlobalStat.
type GlobalStat struct {
	DownloadSpeed   Uint64 `json:"downloadSpeed"`
	UploadSpeed     Uint64 `json:"uploadSpeed"`
	NumActive       Uint64 `json:"numActive"`
	NumWaiting      Uint64 `json:"numWaiting"`
	NumStopped      Uint64 `json:"numStopped"`
	NumStoppedTotal Uint64 `json:"numStoppedTotal"`
}

// Version is the result of aria2.getVersion.
type Version struct {
	Version         string   `json:"version"`
	EnabledFeatures []string `json:"enabledFeatures"`
}

// Notification is an event pushed by aria2, e.g. aria2.onDownloadComplete.
type Notification struct {
	Method string
	GID    string
}

// NotificationHandler receives engine notifications. It runs on the session's
// read goroutine and must not block.
type NotificationHandler func(Notification)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// envelope covers responses and notifications; notifications carry a method
// and no id.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []struct {
		GID string `json:"gid"`
	} `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func (e *envelope) id() string {
	if len(e.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.ID, &s); err == nil {
		return s
	}
	return string(e.ID)
}
