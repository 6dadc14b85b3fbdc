package gtp

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func parse(raw string) (bool, string, error) {
	c := &streamChannel{r: bufio.NewReader(strings.NewReader(raw))}
	return readResponse(c)
}

func TestReadResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantFailure bool
		want        string
	}{
		{"simple success", "= D4\n\n", false, "D4"},
		{"empty success", "=\n\n", false, ""},
		{"failure", "? illegal move\n\n", true, "illegal move"},
		{"leading blank lines are skipped", "\n  \n= ok\n\n", false, "ok"},
		{"multi-line body", "= line one\nline two\n\n", false, "line one\nline two"},
		{"carriage returns are dropped", "= a\r\nb\r\n\r\n", false, "a\nb"},
		{"tabs become spaces", "= a\tb\n\n", false, "a b"},
		{"control characters are dropped", "= a\x07b\x00c\n\n", false, "abc"},
		{"trailing whitespace is stripped", "= value   \n\n", false, "value"},
		{"leading whitespace after status is stripped", "=   \t spaced\n\n", false, "spaced"},
		{"eof mid-response keeps what was read", "= partial\nmore", false, "partial\nmore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isFailure, response, err := parse(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.wantFailure, isFailure)
			require.Equal(t, tt.want, response)
		})
	}

	t.Run("eof before any data is channel closed", func(t *testing.T) {
		_, _, err := parse("\n\n")
		require.ErrorIs(t, err, ErrChannelClosed)
		var te *TransportError
		require.ErrorAs(t, err, &te, "Closed channel should be a transport error")
	})

	t.Run("reads consecutive responses", func(t *testing.T) {
		c := &streamChannel{r: bufio.NewReader(strings.NewReader("= one\n\n= two\n\n"))}
		_, first, err := readResponse(c)
		require.NoError(t, err)
		_, second, err := readResponse(c)
		require.NoError(t, err)
		require.Equal(t, []string{"one", "two"}, []string{first, second})
	})
}

func TestReadResponseProtocolErrors(t *testing.T) {
	t.Run("non-GTP first line", func(t *testing.T) {
		_, _, err := parse("hello\n\n")
		var pe *ProtocolError
		require.ErrorAs(t, err, &pe)
		require.Contains(t, pe.Msg, "isn't speaking GTP")
	})

	t.Run("usage banner hint", func(t *testing.T) {
		_, _, err := parse("Usage: engine [options]\n")
		require.ErrorContains(t, err, "usage message")
	})

	t.Run("GMP preamble hint", func(t *testing.T) {
		_, _, err := parse(gmpPreamble + "\n")
		require.ErrorContains(t, err, "GMP")
	})
}

func TestValidateCommand(t *testing.T) {
	require.NoError(t, ValidateCommand("play", "b", "D4"))
	require.Error(t, ValidateCommand(""))
	require.Error(t, ValidateCommand("play b"))
	require.Error(t, ValidateCommand("play", "b\nD4"))
	require.Error(t, ValidateCommand("play", "\x01"))
	require.Error(t, ValidateCommand("play", ""))
	require.Equal(t, "play b D4", FormatCommand("play", "b", "D4"))
	require.Equal(t, "quit", FormatCommand("quit"))
}
