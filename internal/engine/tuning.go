package engine

import (
	"fmt"
	"strconv"

	"github.com/slipstream/aria2d/internal/engine/rpc"
)

// Tuning is the engine policy shared by the process flags and the per-task
// options. Task-level split and connection values outside the globally
// configured range are rejected by some aria2 builds, so both are rendered
// from this one struct.
type Tuning struct {
	RPCPort                int
	MaxConcurrentDownloads int
	Split                  int
	MaxConnectionPerServer int
	MinSplitSize           string
	FileAllocation         string
}

// DefaultTuning is the fixed policy aria2c is launched with.
var DefaultTuning = Tuning{
	RPCPort:                6800,
	MaxConcurrentDownloads: 5,
	Split:                  32,
	MaxConnectionPerServer: 16,
	MinSplitSize:           "1M",
	FileAllocation:         "none",
}

// Args renders the aria2c command line. Daemon mode keeps the RPC port open
// with no active downloads.
func (t Tuning) Args() []string {
	return []string{
		"--daemon=true",
		"--enable-rpc=true",
		"--rpc-listen-port=" + strconv.Itoa(t.RPCPort),
		"--rpc-allow-origin-all=true",
		"--max-concurrent-downloads=" + strconv.Itoa(t.MaxConcurrentDownloads),
		"--split=" + strconv.Itoa(t.Split),
		"--max-connection-per-server=" + strconv.Itoa(t.MaxConnectionPerServer),
		"--min-split-size=" + t.MinSplitSize,
		"--file-allocation=" + t.FileAllocation,
		"--continue=true",
		"--auto-file-renaming=false",
		"--allow-overwrite=true",
	}
}

// Endpoint is the loopback WebSocket URL of the RPC listener.
func (t Tuning) Endpoint() string {
	return fmt.Sprintf("ws://127.0.0.1:%d/jsonrpc", t.RPCPort)
}

// TaskOptions builds the per-download options. An empty filename lets the
// engine pick one.
func (t Tuning) TaskOptions(dir, filename string) rpc.TaskOptions {
	return rpc.TaskOptions{
		Dir:                    dir,
		Out:                    filename,
		Split:                  t.Split,
		MaxConnectionPerServer: t.MaxConnectionPerServer,
	}
}
