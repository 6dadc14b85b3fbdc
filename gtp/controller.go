package gtp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Controller manages a GTP session with one engine.
//
// After a channel failure the controller refuses further commands. In
// cautious mode, channel failures are also collected as late errors, so
// that problems after the end of a game can be reported without voiding it.
type Controller struct {
	Name string

	channel       Channel
	channelIsBad  bool
	closed        bool
	cautious      bool
	lateErrors    []string
	knownCommands map[string]bool
	translations  map[string]string
	transcript    zerolog.Logger
}

type ControllerOption func(*Controller)

// WithTranslations maps command names used by callers to the names the
// engine implements.
func WithTranslations(translations map[string]string) ControllerOption {
	return func(c *Controller) {
		c.translations = translations
	}
}

// WithTranscript logs every command and response.
func WithTranscript(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.transcript = logger
	}
}

// NewController takes ownership of the channel.
func NewController(channel Channel, name string, opts ...ControllerOption) *Controller {
	c := &Controller{
		Name:          name,
		channel:       channel,
		knownCommands: make(map[string]bool),
		transcript:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) translate(command string) string {
	if t, ok := c.translations[command]; ok {
		return t
	}
	return command
}

// DoCommand sends a command and returns the engine's success response.
//
// A failure response is returned as *BadResponse; problems with the channel
// itself are returned as *ChannelError.
func (c *Controller) DoCommand(command string, arguments ...string) (string, error) {
	translated := c.translate(command)
	line := FormatCommand(translated, arguments...)
	if c.closed {
		return "", c.fail(&ChannelError{Msg: fmt.Sprintf("error sending '%s' to %s: channel is closed", line, c.Name)})
	}
	if c.channelIsBad {
		return "", c.fail(&ChannelError{Msg: fmt.Sprintf("error sending '%s' to %s: channel is bad", line, c.Name)})
	}
	c.transcript.Info().Str("player", c.Name).Str("dir", "send").Msg(line)
	if err := c.channel.SendCommand(translated, arguments...); err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			return "", err
		}
		c.channelIsBad = true
		return "", c.fail(&ChannelError{Msg: fmt.Sprintf("transport error sending '%s' to %s", line, c.Name), Err: err})
	}
	isFailure, response, err := c.channel.GetResponse()
	if err != nil {
		c.channelIsBad = true
		kind := "transport error"
		var pe *ProtocolError
		if errors.As(err, &pe) {
			kind = "GTP protocol error"
		}
		return "", c.fail(&ChannelError{Msg: fmt.Sprintf("%s reading response to '%s' from %s", kind, line, c.Name), Err: err})
	}
	if isFailure {
		c.transcript.Info().Str("player", c.Name).Str("dir", "recv").Msg("? " + response)
		return "", &BadResponse{
			Command:       translated,
			Arguments:     arguments,
			EngineMessage: response,
			Msg:           fmt.Sprintf("failure response from '%s' to %s:\n%s", line, c.Name, response),
			Err:           &EngineError{Msg: response},
		}
	}
	c.transcript.Info().Str("player", c.Name).Str("dir", "recv").Msg("= " + response)
	return response, nil
}

func (c *Controller) fail(err *ChannelError) error {
	if c.cautious {
		c.lateErrors = append(c.lateErrors, err.Error())
	}
	return err
}

// KnownCommand asks the engine whether it implements a command, caching
// the answer. A failure response counts as "not known".
func (c *Controller) KnownCommand(command string) (bool, error) {
	if known, ok := c.knownCommands[command]; ok {
		return known, nil
	}
	response, err := c.DoCommand("known_command", c.translate(command))
	var bad *BadResponse
	switch {
	case errors.As(err, &bad):
		c.knownCommands[command] = false
	case err != nil:
		return false, err
	default:
		c.knownCommands[command] = strings.TrimSpace(response) == "true"
	}
	return c.knownCommands[command], nil
}

// CheckProtocolVersion fails unless the engine speaks GTP version 2. An
// engine that does not implement protocol_version is accepted.
func (c *Controller) CheckProtocolVersion() error {
	response, err := c.DoCommand("protocol_version")
	var failure *EngineError
	if errors.As(err, &failure) {
		return nil
	}
	if err != nil {
		return err
	}
	if response != "2" {
		return &BadResponse{
			Command:       "protocol_version",
			EngineMessage: response,
			Msg:           fmt.Sprintf("%s reports GTP protocol version %s", c.Name, response),
		}
	}
	return nil
}

// ErrNoCPUTime means the engine does not implement gomill-cpu_time.
var ErrNoCPUTime = errors.New("engine does not report cpu time")

// CPUTime asks the engine for its own CPU time. It returns ErrNoCPUTime if
// the command is not advertised; any other error means the engine advertised
// it but failed to answer sensibly.
func (c *Controller) CPUTime() (float64, error) {
	known, err := c.KnownCommand("gomill-cpu_time")
	if err != nil {
		return 0, err
	}
	if !known {
		return 0, ErrNoCPUTime
	}
	response, err := c.DoCommand("gomill-cpu_time")
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(response, 64)
	if err != nil || seconds < 0 {
		return 0, &BadResponse{
			Command:       "gomill-cpu_time",
			EngineMessage: response,
			Msg:           fmt.Sprintf("%s returned invalid cpu time %q", c.Name, response),
		}
	}
	return seconds, nil
}

// SetCautiousMode switches late-error collection on or off.
func (c *Controller) SetCautiousMode(cautious bool) {
	c.cautious = cautious
}

func (c *Controller) Cautious() bool { return c.cautious }

// ChannelIsBad reports whether a channel failure has been seen.
func (c *Controller) ChannelIsBad() bool { return c.channelIsBad }

// LateErrors returns the errors collected in cautious mode and by Close.
func (c *Controller) LateErrors() []string {
	return c.lateErrors
}

// Close sends quit (unless the channel has already failed) and closes the
// channel. Failures are recorded as late errors as well as returned.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	var firstErr error
	record := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
		c.lateErrors = append(c.lateErrors, err.Error())
	}
	if !c.channelIsBad {
		cautious := c.cautious
		c.cautious = false
		if _, err := c.DoCommand("quit"); err != nil {
			record(err)
		}
		c.cautious = cautious
	}
	c.closed = true
	if err := c.channel.Close(); err != nil {
		record(&ChannelError{Msg: fmt.Sprintf("error closing %s", c.Name), Err: err})
	}
	return firstErr
}

// ResourceUsage returns the engine's resource usage, if known. It is only
// available after Close.
func (c *Controller) ResourceUsage() *ResourceUsage {
	return c.channel.ResourceUsage()
}

// Channel exposes the underlying channel.
func (c *Controller) Channel() Channel {
	return c.channel
}
