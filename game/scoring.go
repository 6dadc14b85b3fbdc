package game

import (
	"fmt"
	"math"
)

// HandicapCompensation says how many points Black gives back for handicap
// stones when the board is scored internally.
type HandicapCompensation int

const (
	CompensationFull HandicapCompensation = iota
	CompensationShort
	CompensationNo
)

func (h HandicapCompensation) String() string {
	switch h {
	case CompensationShort:
		return "short"
	case CompensationNo:
		return "no"
	}
	return "full"
}

func (h HandicapCompensation) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HandicapCompensation) UnmarshalText(text []byte) error {
	parsed, err := ParseHandicapCompensation(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func ParseHandicapCompensation(s string) (HandicapCompensation, error) {
	switch s {
	case "full", "":
		return CompensationFull, nil
	case "short":
		return CompensationShort, nil
	case "no":
		return CompensationNo, nil
	}
	return CompensationFull, fmt.Errorf("invalid handicap compensation: %q", s)
}

// Deduction is the number of points taken from Black for a handicap game.
func (h HandicapCompensation) Deduction(handicap int) int {
	if handicap < 2 {
		return 0
	}
	switch h {
	case CompensationFull:
		return handicap
	case CompensationShort:
		return handicap - 1
	}
	return 0
}

// Score is the outcome of counting a finished board. Winner is None for jigo.
type Score struct {
	Winner Colour
	Margin float64
}

// ScoreBoard counts the board by area, subtracting komi and any handicap
// compensation from Black.
func ScoreBoard(b *Board, komi float64, handicap int, compensation HandicapCompensation) Score {
	score := float64(b.AreaScore()) - komi - float64(compensation.Deduction(handicap))
	switch {
	case score > 0:
		return Score{Winner: Black, Margin: score}
	case score < 0:
		return Score{Winner: White, Margin: math.Abs(score)}
	}
	return Score{Winner: None}
}
