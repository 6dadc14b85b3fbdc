package game

import (
	"fmt"
	"strings"
)

// Colour is the colour of a stone or player. None doubles as an empty point.
type Colour uint8

const (
	None Colour = iota
	Black
	White
)

// Opponent returns the other player's colour.
func (c Colour) Opponent() Colour {
	switch c {
	case Black:
		return White
	case White:
		return Black
	}
	return None
}

// String returns the single-letter GTP form: "b", "w" or "".
func (c Colour) String() string {
	switch c {
	case Black:
		return "b"
	case White:
		return "w"
	}
	return ""
}

// Upper returns the SGF form: "B", "W" or "".
func (c Colour) Upper() string {
	return strings.ToUpper(c.String())
}

// Name returns "black" or "white".
func (c Colour) Name() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	}
	return "none"
}

func (c Colour) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Colour) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = None
		return nil
	}
	parsed, err := ParseColour(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColour accepts "b", "w", "black" or "white" in any case.
func ParseColour(s string) (Colour, error) {
	switch strings.ToLower(s) {
	case "b", "black":
		return Black, nil
	case "w", "white":
		return White, nil
	}
	return None, fmt.Errorf("invalid colour: %q", s)
}

// Colours lists the two player colours in playing order.
var Colours = [2]Colour{Black, White}
