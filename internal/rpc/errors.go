package rpc

import (
	"errors"
	"fmt"
)

// Standard errors returned by the transport.
var (
	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("transport shut down")

	// ErrDisconnected indicates the engine's stream reached end of
	// stream: the child process exited or closed its pipe. Terminal for
	// the session; the transport does not reconnect.
	ErrDisconnected = errors.New("engine disconnected")
)

// ResponseError is a protocol-level error carried in a response frame.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("engine error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}
