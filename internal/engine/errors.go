package engine

import "errors"

// Standard errors returned by the engine handle.
var (
	// ErrAlreadyStarted indicates Start was called on a running engine.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNotRunning indicates a command was issued before Start or
	// after the engine stopped.
	ErrNotRunning = errors.New("engine not running")
)
