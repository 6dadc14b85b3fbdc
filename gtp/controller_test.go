package gtp

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ringmaster/gtp/gtptest"
)

func newTestController(e *gtptest.Engine, opts ...ControllerOption) *Controller {
	return NewController(NewInternalChannel(e.Serve), "t1", opts...)
}

func TestControllerDoCommand(t *testing.T) {
	t.Run("returns the success response", func(t *testing.T) {
		c := newTestController(gtptest.NewEngine("test"))
		defer c.Close()
		response, err := c.DoCommand("name")
		require.NoError(t, err)
		require.Equal(t, "test", response)
	})

	t.Run("failure response is a BadResponse", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		c := newTestController(e)
		defer c.Close()
		_, err := c.DoCommand("boardsize", "99")
		var bad *BadResponse
		require.ErrorAs(t, err, &bad)
		require.Equal(t, "unacceptable size", bad.EngineMessage)
		require.Equal(t, "boardsize 99", bad.CommandLine())
		var failure *EngineError
		require.ErrorAs(t, err, &failure)
		require.Equal(t, "unacceptable size", failure.Msg)
		require.False(t, c.ChannelIsBad(), "Engine errors leave the channel usable")
	})

	t.Run("translates command names", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.Register("kgs-genmove_cleanup", func([]string) (string, error) { return "C3", nil })
		c := newTestController(e, WithTranslations(map[string]string{"genmove": "kgs-genmove_cleanup"}))
		defer c.Close()
		response, err := c.DoCommand("genmove", "b")
		require.NoError(t, err)
		require.Equal(t, "C3", response)
		require.Contains(t, e.Commands(), "kgs-genmove_cleanup b")
	})

	t.Run("translated name appears in failure", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.Register("alt-play", func([]string) (string, error) { return "", errors.New("illegal move") })
		c := newTestController(e, WithTranslations(map[string]string{"play": "alt-play"}))
		defer c.Close()
		_, err := c.DoCommand("play", "b", "D4")
		var bad *BadResponse
		require.ErrorAs(t, err, &bad)
		require.Equal(t, "alt-play", bad.Command)
	})

	t.Run("engine exit makes the channel bad", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.ExitOn("genmove")
		c := newTestController(e)
		defer c.Close()
		_, err := c.DoCommand("genmove", "b")
		var ce *ChannelError
		require.ErrorAs(t, err, &ce)
		require.ErrorIs(t, err, ErrChannelClosed)
		require.True(t, c.ChannelIsBad())

		_, err = c.DoCommand("name")
		require.ErrorContains(t, err, "channel is bad")
	})

	t.Run("invalid tokens are rejected before sending", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		c := newTestController(e)
		defer c.Close()
		_, err := c.DoCommand("play", "b", "D 4")
		require.Error(t, err)
		require.False(t, c.ChannelIsBad())
	})

	t.Run("writes a transcript", func(t *testing.T) {
		var buf bytes.Buffer
		c := newTestController(gtptest.NewEngine("test"), WithTranscript(zerolog.New(&buf)))
		_, err := c.DoCommand("name")
		require.NoError(t, err)
		require.NoError(t, c.Close())
		require.Contains(t, buf.String(), `"dir":"send","message":"name"`)
		require.Contains(t, buf.String(), `"message":"= test"`)
	})
}

func TestControllerKnownCommand(t *testing.T) {
	e := gtptest.NewEngine("test")
	c := newTestController(e)
	defer c.Close()

	known, err := c.KnownCommand("genmove")
	require.NoError(t, err)
	require.True(t, known)

	known, err = c.KnownCommand("gomill-cpu_time")
	require.NoError(t, err)
	require.False(t, known)

	_, err = c.KnownCommand("genmove")
	require.NoError(t, err)
	count := 0
	for _, cmd := range e.Commands() {
		if cmd == "known_command genmove" {
			count++
		}
	}
	require.Equal(t, 1, count, "Answers should be cached")
}

func TestControllerKnownCommandFailure(t *testing.T) {
	e := gtptest.NewEngine("test")
	e.Unregister("known_command")
	c := newTestController(e)
	defer c.Close()
	known, err := c.KnownCommand("genmove")
	require.NoError(t, err)
	require.False(t, known, "A failure response means unknown")
}

func TestControllerCautiousMode(t *testing.T) {
	t.Run("collects channel failures as late errors", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.ExitOn("final_score")
		c := newTestController(e)
		c.SetCautiousMode(true)
		_, err := c.DoCommand("final_score")
		require.Error(t, err)
		require.Len(t, c.LateErrors(), 1)
		require.True(t, strings.HasPrefix(c.LateErrors()[0], "transport error reading response to 'final_score'"))
		require.NoError(t, c.Channel().Close())
	})

	t.Run("not collected outside cautious mode", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.ExitOn("genmove")
		c := newTestController(e)
		_, err := c.DoCommand("genmove", "w")
		require.Error(t, err)
		require.Empty(t, c.LateErrors())
	})
}

func TestControllerCPUTime(t *testing.T) {
	t.Run("not advertised", func(t *testing.T) {
		c := newTestController(gtptest.NewEngine("test"))
		defer c.Close()
		_, err := c.CPUTime()
		require.ErrorIs(t, err, ErrNoCPUTime)
	})

	t.Run("advertised", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.SetCPUTime(1.25)
		c := newTestController(e)
		defer c.Close()
		seconds, err := c.CPUTime()
		require.NoError(t, err)
		require.Equal(t, 1.25, seconds)
	})

	t.Run("advertised but broken", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.Register("gomill-cpu_time", func([]string) (string, error) { return "lots", nil })
		c := newTestController(e)
		defer c.Close()
		_, err := c.CPUTime()
		var bad *BadResponse
		require.ErrorAs(t, err, &bad)
		var failure *EngineError
		require.False(t, errors.As(err, &failure), "The engine answered with success")
	})
}

func TestControllerClose(t *testing.T) {
	t.Run("sends quit", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		c := newTestController(e)
		require.NoError(t, c.Close())
		require.Equal(t, []string{"quit"}, e.Commands())
		require.NoError(t, c.Close(), "Second close is a no-op")
	})

	t.Run("skips quit on a bad channel", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.ExitOn("genmove")
		c := newTestController(e)
		_, err := c.DoCommand("genmove", "b")
		require.Error(t, err)
		require.NoError(t, c.Close())
		require.Equal(t, []string{"genmove b"}, e.Commands())
	})

	t.Run("quit failure is a late error", func(t *testing.T) {
		e := gtptest.NewEngine("test")
		e.ExitOn("quit")
		c := newTestController(e)
		require.Error(t, c.Close())
		require.Len(t, c.LateErrors(), 1)
	})
}

func TestCheckProtocolVersion(t *testing.T) {
	e := gtptest.NewEngine("test")
	c := newTestController(e)
	defer c.Close()
	require.NoError(t, c.CheckProtocolVersion())

	e.Register("protocol_version", func([]string) (string, error) { return "1", nil })
	require.Error(t, c.CheckProtocolVersion())

	e.Unregister("protocol_version")
	require.NoError(t, c.CheckProtocolVersion(), "Unimplemented protocol_version is accepted")
}
