//go:build linux || darwin

package gtp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

const readChunk = 8192

// NonblockingChannel runs an engine as a child process, reading its stdout
// and stderr through non-blocking pipes multiplexed with poll(2).
//
// Stderr is drained whenever the channel waits for stdout, so an engine
// writing a large volume of diagnostics before its response cannot deadlock
// the conversation. The collected stderr is available from
// RetrieveDiagnostics.
type NonblockingChannel struct {
	cmd    *exec.Cmd
	stdin  *os.File
	outFd  int
	errFd  int
	outBuf []byte
	errBuf []byte
	outEOF bool
	errEOF bool
	closed bool
	usage  *ResourceUsage
	done   chan error
}

// NewNonblockingChannel starts the engine. cfg.Stderr is ignored: stderr
// is always captured.
func NewNonblockingChannel(cfg ProcessConfig) (*NonblockingChannel, error) {
	cmd, err := cfg.command()
	if err != nil {
		return nil, err
	}
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, &ChannelError{Msg: "error creating pipe", Err: err}
	}
	outFds, err := nonblockingPipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, &ChannelError{Msg: "error creating pipe", Err: err}
	}
	errFds, err := nonblockingPipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		unix.Close(outFds[0])
		unix.Close(outFds[1])
		return nil, &ChannelError{Msg: "error creating pipe", Err: err}
	}
	childOut := os.NewFile(uintptr(outFds[1]), "engine-stdout")
	childErr := os.NewFile(uintptr(errFds[1]), "engine-stderr")
	cmd.Stdin = stdinR
	cmd.Stdout = childOut
	cmd.Stderr = childErr
	err = cmd.Start()
	stdinR.Close()
	childOut.Close()
	childErr.Close()
	if err != nil {
		stdinW.Close()
		unix.Close(outFds[0])
		unix.Close(errFds[0])
		return nil, &ChannelError{Msg: fmt.Sprintf("error starting subprocess %q", cfg.Command[0]), Err: err}
	}
	c := &NonblockingChannel{
		cmd:   cmd,
		stdin: stdinW,
		outFd: outFds[0],
		errFd: errFds[0],
		done:  make(chan error, 1),
	}
	go func() {
		c.done <- cmd.Wait()
	}()
	return c, nil
}

// nonblockingPipe returns a pipe whose read end (index 0) is non-blocking.
// The write end is left blocking for the child.
func nonblockingPipe() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return fds, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return fds, err
	}
	return fds, nil
}

func (c *NonblockingChannel) SendCommand(command string, arguments ...string) error {
	if err := ValidateCommand(command, arguments...); err != nil {
		return err
	}
	if c.closed {
		return &TransportError{Msg: "channel is closed"}
	}
	_, err := io.WriteString(c.stdin, FormatCommand(command, arguments...)+"\n")
	return writeError(err)
}

func (c *NonblockingChannel) GetResponse() (bool, string, error) {
	if c.closed {
		return false, "", &TransportError{Msg: "channel is closed"}
	}
	return readResponse(c)
}

func (c *NonblockingChannel) readLine() (string, error) {
	for {
		if i := bytes.IndexByte(c.outBuf, '\n'); i >= 0 {
			line := string(c.outBuf[:i])
			c.outBuf = c.outBuf[i+1:]
			return line, nil
		}
		if c.outEOF {
			rest := string(c.outBuf)
			c.outBuf = nil
			return rest, io.EOF
		}
		if err := c.poll(); err != nil {
			return "", err
		}
	}
}

// poll waits until stdout or stderr is readable and reads what is there.
func (c *NonblockingChannel) poll() error {
	fds := []unix.PollFd{{Fd: int32(c.outFd), Events: unix.POLLIN}}
	if !c.errEOF {
		fds = append(fds, unix.PollFd{Fd: int32(c.errFd), Events: unix.POLLIN})
	}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return &TransportError{Msg: "error polling engine", Err: err}
		}
	}
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		if int(pfd.Fd) == c.outFd {
			if err := drain(c.outFd, &c.outBuf, &c.outEOF); err != nil {
				return &TransportError{Msg: "error reading from engine", Err: err}
			}
		} else {
			if err := drain(c.errFd, &c.errBuf, &c.errEOF); err != nil {
				return &TransportError{Msg: "error reading engine's stderr", Err: err}
			}
		}
	}
	return nil
}

// drain reads from a non-blocking fd until it would block or hits EOF.
func drain(fd int, buf *[]byte, eof *bool) error {
	chunk := make([]byte, readChunk)
	for {
		n, err := unix.Read(fd, chunk)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			*eof = true
			return nil
		}
		*buf = append(*buf, chunk[:n]...)
	}
}

// RetrieveDiagnostics returns the stderr collected so far and clears it.
func (c *NonblockingChannel) RetrieveDiagnostics() string {
	if !c.errEOF && !c.closed {
		_ = drain(c.errFd, &c.errBuf, &c.errEOF)
	}
	s := string(c.errBuf)
	c.errBuf = nil
	return s
}

// Close closes the engine's stdin and waits for it to exit, escalating to
// SIGTERM and then SIGKILL if it does not. Stderr written before exit stays
// available from RetrieveDiagnostics.
func (c *NonblockingChannel) Close() error {
	if c.closed {
		return nil
	}
	closeErr := c.stdin.Close()
	usage, err := reap(c.cmd, c.done)
	c.usage = usage
	if !c.errEOF {
		_ = drain(c.errFd, &c.errBuf, &c.errEOF)
	}
	c.closed = true
	unix.Close(c.outFd)
	unix.Close(c.errFd)
	if err != nil {
		return err
	}
	if closeErr != nil {
		return &TransportError{Msg: "error closing command pipe", Err: closeErr}
	}
	return nil
}

func (c *NonblockingChannel) ResourceUsage() *ResourceUsage {
	return c.usage
}
