package ui

import "errors"

// ErrEngineExited indicates the engine process died while the frontend
// was running. The session is unrecoverable; callers should report the
// failure rather than exit cleanly.
var ErrEngineExited = errors.New("engine exited during session")
