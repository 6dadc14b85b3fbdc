package gtp

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

// gmpPreamble is the start of a Go Modem Protocol handshake.
const gmpPreamble = "\x01\xa1\xa0\x80"

// ValidateCommand checks a command and its arguments can be sent as a single
// GTP line: no token may be empty, contain whitespace, or contain control
// characters.
func ValidateCommand(command string, arguments ...string) error {
	if err := validateToken(command); err != nil {
		return fmt.Errorf("invalid GTP command %q: %w", command, err)
	}
	for _, arg := range arguments {
		if err := validateToken(arg); err != nil {
			return fmt.Errorf("invalid GTP argument %q: %w", arg, err)
		}
	}
	return nil
}

func validateToken(token string) error {
	if token == "" {
		return fmt.Errorf("empty token")
	}
	for _, r := range token {
		if unicode.IsSpace(r) {
			return fmt.Errorf("contains whitespace")
		}
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("contains control characters")
		}
	}
	return nil
}

// FormatCommand returns the command line without its terminating newline.
func FormatCommand(command string, arguments ...string) string {
	if len(arguments) == 0 {
		return command
	}
	return command + " " + strings.Join(arguments, " ")
}

// lineReader yields one line at a time without its terminating LF. At end
// of input it returns any unterminated remainder together with io.EOF.
type lineReader interface {
	readLine() (string, error)
}

// readResponse reads and parses a single GTP response.
func readResponse(r lineReader) (isFailure bool, response string, err error) {
	var lines []string
	for {
		line, err := r.readLine()
		eof := false
		if err == io.EOF {
			eof = true
		} else if err != nil {
			return false, "", &TransportError{Msg: "error reading from engine", Err: err}
		}
		if len(lines) == 0 {
			if strings.TrimSpace(line) == "" {
				if eof {
					return false, "", channelClosed("")
				}
				continue
			}
			if line[0] != '=' && line[0] != '?' {
				return false, "", notGTPError(line)
			}
			lines = append(lines, line)
		} else {
			if strings.TrimSpace(line) == "" {
				break
			}
			lines = append(lines, line)
		}
		if eof {
			break
		}
	}
	isFailure = lines[0][0] == '?'
	lines[0] = strings.TrimLeft(lines[0][1:], " \t")
	return isFailure, cleanResponse(strings.Join(lines, "\n")), nil
}

func notGTPError(line string) *ProtocolError {
	msg := fmt.Sprintf("engine isn't speaking GTP: first byte is %q", line[0])
	switch {
	case strings.HasPrefix(line, gmpPreamble):
		msg = "engine appears to be speaking GMP, not GTP"
	case strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "usage"):
		msg += "; is it printing a usage message?"
	}
	return &ProtocolError{Msg: msg}
}

// cleanResponse drops CR and control characters other than LF, turns tabs
// into spaces, and strips trailing whitespace.
func cleanResponse(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\t':
			sb.WriteByte(' ')
		case r == '\n':
			sb.WriteByte('\n')
		case r < 0x20 || r == 0x7f:
		default:
			sb.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(sb.String(), unicode.IsSpace)
}
