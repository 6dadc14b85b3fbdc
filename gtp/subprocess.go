package gtp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// CloseTimeout is how long Close waits for an engine to exit before each
// escalation step (SIGTERM, then SIGKILL).
var CloseTimeout = 5 * time.Second

// ProcessConfig describes how to start an engine subprocess.
type ProcessConfig struct {
	Command []string
	Dir     string
	// Env holds KEY=value additions to the inherited environment.
	Env []string
	// Stderr receives the engine's stderr; nil discards it.
	Stderr io.Writer
}

func (cfg ProcessConfig) command() (*exec.Cmd, error) {
	if len(cfg.Command) == 0 {
		return nil, &ChannelError{Msg: "no command specified"}
	}
	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	return cmd, nil
}

// SubprocessChannel runs an engine as a child process and talks to it over
// its stdin and stdout with blocking I/O.
//
// Stderr goes straight to a file or is discarded, so a chatty engine cannot
// fill a pipe that nobody is reading.
type SubprocessChannel struct {
	streamChannel
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Closer
	usage  *ResourceUsage
	done   chan error
}

// NewSubprocessChannel starts the engine.
func NewSubprocessChannel(cfg ProcessConfig) (*SubprocessChannel, error) {
	cmd, err := cfg.command()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cfg.Stderr
	// Plain os.Pipes rather than StdinPipe/StdoutPipe: Wait must not close
	// the read end while a final response is still buffered in it.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, &ChannelError{Msg: "error creating pipe", Err: err}
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, &ChannelError{Msg: "error creating pipe", Err: err}
	}
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	err = cmd.Start()
	stdinR.Close()
	stdoutW.Close()
	if err != nil {
		stdinW.Close()
		stdoutR.Close()
		return nil, &ChannelError{Msg: fmt.Sprintf("error starting subprocess %q", cfg.Command[0]), Err: err}
	}
	c := &SubprocessChannel{
		streamChannel: streamChannel{w: stdinW, r: bufio.NewReader(stdoutR)},
		cmd:           cmd,
		stdin:         stdinW,
		stdout:        stdoutR,
		done:          make(chan error, 1),
	}
	go func() {
		c.done <- cmd.Wait()
	}()
	return c, nil
}

// Close closes the engine's stdin and waits for it to exit, escalating to
// SIGTERM and then SIGKILL if it does not.
func (c *SubprocessChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	closeErr := c.stdin.Close()
	usage, err := reap(c.cmd, c.done)
	c.stdout.Close()
	c.usage = usage
	if err != nil {
		return err
	}
	if closeErr != nil {
		return &TransportError{Msg: "error closing command pipe", Err: closeErr}
	}
	return nil
}

func (c *SubprocessChannel) ResourceUsage() *ResourceUsage {
	return c.usage
}

// reap waits for a started process to exit, signalling it if it lingers.
func reap(cmd *exec.Cmd, done <-chan error) (*ResourceUsage, error) {
	var escalation error
	select {
	case <-done:
	case <-time.After(CloseTimeout):
		_ = cmd.Process.Signal(syscall.SIGTERM)
		escalation = &TransportError{Msg: "engine did not exit; sent SIGTERM"}
		select {
		case <-done:
		case <-time.After(CloseTimeout):
			_ = cmd.Process.Kill()
			<-done
			escalation = &TransportError{Msg: "engine did not exit; killed it"}
		}
	}
	var usage *ResourceUsage
	if cmd.ProcessState != nil {
		usage = &ResourceUsage{
			User:   cmd.ProcessState.UserTime(),
			System: cmd.ProcessState.SystemTime(),
		}
	}
	return usage, escalation
}
