package cdp

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by any session operation issued after the
// session has reached the Done state.
var ErrSessionClosed = errors.New("cdp: session is closed")

// ErrTimeout is returned by send_and_await when a command's response does
// not arrive within the session's timeout. It is never returned by
// wait_for_quiescence, whose timeouts are benign.
var ErrTimeout = errors.New("cdp: timed out waiting for response")

// UnknownCommandError is returned when a caller issues a method outside
// the allowed set without allow_unknown_command.
type UnknownCommandError struct {
	Method string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("cdp: unknown command: %s", e.Method)
}

// ProtocolError wraps an error object the debuggee itself reported in a
// Response.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cdp: %s: %s (code %d)", e.Method, e.Message, e.Code)
}

// TransportError wraps a failure reading from or writing to the underlying
// WebSocket connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cdp: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProvisionError wraps a failure bringing up the sandboxed debuggee:
// image build, container start, or debugger discovery.
type ProvisionError struct {
	Stage string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("cdp: provision %s: %v", e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err should terminate the session (Done state)
// rather than simply fail the one command or batch entry that raised it.
// Protocol errors and unknown-command errors are per-command failures;
// everything else — a closed session, a transport break, a timeout — means
// the session can no longer make progress.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var unknown *UnknownCommandError
	var proto *ProtocolError
	if errors.As(err, &unknown) || errors.As(err, &proto) {
		return false
	}
	return true
}
