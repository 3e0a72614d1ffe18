package engine

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by operations whose result the caller depends on
// (AddDownload, GetStatus) when there is no live RPC session.
var ErrNotConnected = errors.New("aria2 client not connected")

// ErrShutDown is returned by Start on a manager that has already been shut down.
var ErrShutDown = errors.New("manager has been shut down")

// ErrAlreadyStarted is returned by Start on a running manager.
var ErrAlreadyStarted = errors.New("manager already started")

// LaunchError reports a missing engine executable or a failed spawn.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
