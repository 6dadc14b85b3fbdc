package gtp

import (
	"bufio"
	"errors"
	"io"
	"os"
	"syscall"
	"time"
)

// Channel is a transport to a single GTP engine.
type Channel interface {
	// SendCommand validates and transmits one command line.
	SendCommand(command string, arguments ...string) error
	// GetResponse blocks until one complete response has been read.
	GetResponse() (isFailure bool, response string, err error)
	// Close shuts the channel down and, for subprocesses, reaps the engine.
	Close() error
	// ResourceUsage is the engine's resource usage, available after Close.
	ResourceUsage() *ResourceUsage
}

// ResourceUsage is the CPU time consumed by an engine process.
type ResourceUsage struct {
	User   time.Duration
	System time.Duration
}

// CPUSeconds returns user plus system time in seconds.
func (u *ResourceUsage) CPUSeconds() float64 {
	return (u.User + u.System).Seconds()
}

// streamChannel speaks GTP over a writer and a buffered reader.
type streamChannel struct {
	w      io.Writer
	r      *bufio.Reader
	closed bool
}

func (c *streamChannel) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err == io.EOF {
		return line, io.EOF
	}
	if err != nil {
		return "", err
	}
	return line[:len(line)-1], nil
}

func (c *streamChannel) SendCommand(command string, arguments ...string) error {
	if err := ValidateCommand(command, arguments...); err != nil {
		return err
	}
	if c.closed {
		return &TransportError{Msg: "channel is closed"}
	}
	_, err := io.WriteString(c.w, FormatCommand(command, arguments...)+"\n")
	return writeError(err)
}

func (c *streamChannel) GetResponse() (bool, string, error) {
	if c.closed {
		return false, "", &TransportError{Msg: "channel is closed"}
	}
	return readResponse(c)
}

// writeError classifies a failed write to the engine.
func writeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return channelClosed("")
	}
	return &TransportError{Msg: "error sending command", Err: err}
}
