package gtp

import (
	"bufio"
	"io"
)

// ServeFunc runs a GTP engine reading commands from r and writing
// responses to w until r is exhausted or the engine quits.
type ServeFunc func(r io.Reader, w io.Writer) error

// InternalChannel runs an engine in a goroutine of the current process,
// connected by in-memory pipes.
type InternalChannel struct {
	streamChannel
	commands  *io.PipeWriter
	responses *io.PipeReader
	done      chan error
}

func NewInternalChannel(serve ServeFunc) *InternalChannel {
	cmdR, cmdW := io.Pipe()
	respR, respW := io.Pipe()
	c := &InternalChannel{
		streamChannel: streamChannel{w: cmdW, r: bufio.NewReader(respR)},
		commands:      cmdW,
		responses:     respR,
		done:          make(chan error, 1),
	}
	go func() {
		err := serve(cmdR, respW)
		cmdR.Close()
		respW.Close()
		c.done <- err
	}()
	return c
}

// Close ends the engine's input and waits for it to return.
func (c *InternalChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.commands.Close()
	c.responses.CloseWithError(io.ErrClosedPipe)
	if err := <-c.done; err != nil && err != io.ErrClosedPipe {
		return &TransportError{Msg: "engine failed", Err: err}
	}
	return nil
}

func (c *InternalChannel) ResourceUsage() *ResourceUsage {
	return nil
}
