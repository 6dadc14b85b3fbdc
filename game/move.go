package game

import (
	"fmt"
	"strconv"
	"strings"
)

// columnLetters are the GTP column names; there is no I.
const columnLetters = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

// MaxBoardSize is the largest board GTP vertices can describe.
const MaxBoardSize = len(columnLetters)

// Move is a board point or a pass. Row 0 is the bottom row (GTP row 1).
type Move struct {
	Row, Col int
	Pass     bool
}

// PassMove is the pass move.
var PassMove = Move{Pass: true}

// Point returns the move playing at (row, col).
func Point(row, col int) Move {
	return Move{Row: row, Col: col}
}

func (m Move) IsPass() bool {
	return m.Pass
}

// String returns the GTP vertex, eg "D4" or "pass".
func (m Move) String() string {
	if m.Pass {
		return "pass"
	}
	if m.Col < 0 || m.Col >= MaxBoardSize || m.Row < 0 {
		return fmt.Sprintf("(%d,%d)", m.Row, m.Col)
	}
	return fmt.Sprintf("%c%d", columnLetters[m.Col], m.Row+1)
}

func (m Move) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(text []byte) error {
	parsed, err := ParseVertex(string(text), MaxBoardSize)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseVertex interprets a GTP vertex for a board of the given size.
// It is case-insensitive and accepts "pass".
func ParseVertex(s string, size int) (Move, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "PASS" {
		return PassMove, nil
	}
	if len(s) < 2 {
		return Move{}, fmt.Errorf("invalid vertex: %q", s)
	}
	col := strings.IndexByte(columnLetters, s[0])
	if col < 0 || col >= size {
		return Move{}, fmt.Errorf("invalid vertex: %q", s)
	}
	row, err := strconv.Atoi(s[1:])
	if err != nil || s[1] == '+' || s[1] == '-' || row < 1 || row > size {
		return Move{}, fmt.Errorf("invalid vertex: %q", s)
	}
	return Point(row-1, col), nil
}

// FormatVertices joins moves as a space-separated GTP vertex list.
func FormatVertices(moves []Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}
