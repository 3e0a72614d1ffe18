package engine

import (
	"fmt"

	"github.com/slipstream/aria2d/internal/engine/rpc"
)

// RemovedMessage is the Error message reported for tasks aria2 has removed.
const RemovedMessage = "已移除"

// State is the lifecycle state of a download.
type State int

const (
	StateWaiting State = iota
	StateActive
	StatePaused
	StateComplete
	StateError
)

var stateNames = map[State]string{
	StateWaiting:  "waiting",
	StateActive:   "active",
	StatePaused:   "paused",
	StateComplete: "complete",
	StateError:    "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DownloadStatus is one of Waiting, Active, Paused, Complete or Error(Message).
type DownloadStatus struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"` // set only for StateError
}

func (s DownloadStatus) String() string {
	if s.State == StateError {
		return fmt.Sprintf("error(%s)", s.Message)
	}
	return s.State.String()
}

// DownloadProgress is a point-in-time snapshot of one download.
type DownloadProgress struct {
	GID             string         `json:"gid"`
	CompletedLength uint64         `json:"completedLength"`
	TotalLength     uint64         `json:"totalLength"`
	DownloadSpeed   uint64         `json:"downloadSpeed"` // bytes/sec
	Percentage      float64        `json:"percentage"`    // 0-100
	Status          DownloadStatus `json:"status"`
}

// Translate maps an aria2 status record to a DownloadProgress.
func Translate(gid string, st *rpc.Status) DownloadProgress {
	completed := uint64(st.CompletedLength)
	total := uint64(st.TotalLength)

	return DownloadProgress{
		GID:             gid,
		CompletedLength: completed,
		TotalLength:     total,
		DownloadSpeed:   uint64(st.DownloadSpeed),
		Percentage:      percentage(completed, total),
		Status:          translateState(st.Status, st.ErrorMessage),
	}
}

// percentage is 0 for unknown-size downloads.
func percentage(completed, total uint64) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(completed) / float64(total) * 100
}

func translateState(state, errorMessage string) DownloadStatus {
	switch state {
	case rpc.StateWaiting:
		return DownloadStatus{State: StateWaiting}
	case rpc.StateActive:
		return DownloadStatus{State: StateActive}
	case rpc.StatePaused:
		return DownloadStatus{State: StatePaused}
	case rpc.StateComplete:
		return DownloadStatus{State: StateComplete}
	case rpc.StateError:
		return DownloadStatus{State: StateError, Message: errorMessage}
	case rpc.StateRemoved:
		return DownloadStatus{State: StateError, Message: RemovedMessage}
	default:
		return DownloadStatus{State: StateError, Message: fmt.Sprintf("unknown engine state %q", state)}
	}
}
