package gtp

import (
	"errors"
	"strings"
)

// ErrChannelClosed matches transport errors caused by the engine closing its
// end of the channel (EOF on its stdout, or EPIPE writing to its stdin).
var ErrChannelClosed = errors.New("engine has closed the command channel")

// ChannelError means a channel could not be created, or that a live channel
// has become unusable.
type ChannelError struct {
	Msg string
	Err error
}

func (e *ChannelError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ":\n" + e.Err.Error()
}

func (e *ChannelError) Unwrap() error { return e.Err }

// TransportError is an I/O failure during a live session.
type TransportError struct {
	Msg    string
	Err    error
	Closed bool
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return e.Closed && target == ErrChannelClosed
}

func channelClosed(msg string) *TransportError {
	if msg == "" {
		msg = ErrChannelClosed.Error()
	}
	return &TransportError{Msg: msg, Closed: true}
}

// ProtocolError is a response that could not be parsed as GTP.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return e.Msg }

// EngineError is a failure ('?') response; Msg is the engine's text.
type EngineError struct {
	Msg string
}

func (e *EngineError) Error() string { return e.Msg }

// BadResponse is returned by a Controller when the engine sent a failure
// response, or a success response whose content is unusable. For a failure
// response Err is the *EngineError.
type BadResponse struct {
	Command       string
	Arguments     []string
	EngineMessage string
	Msg           string
	Err           error
}

func (e *BadResponse) Error() string { return e.Msg }

func (e *BadResponse) Unwrap() error { return e.Err }

// CommandLine is the translated command as sent, eg "genmove b".
func (e *BadResponse) CommandLine() string {
	return strings.Join(append([]string{e.Command}, e.Arguments...), " ")
}
