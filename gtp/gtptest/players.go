package gtptest

import (
	"fmt"

	"ringmaster/game"
)

// UpColumn returns an engine that plays up the given column from row 1,
// then passes once the column is full.
func UpColumn(name, column string) *Engine {
	e := NewEngine(name)
	e.SetGenmove(func(_ game.Colour, n int) string {
		if n >= e.size {
			return "pass"
		}
		return fmt.Sprintf("%s%d", column, n+1)
	})
	return e
}

// Scripted returns an engine that answers genmove with the given responses
// in order (moves, "pass", "resign", "claim", or anything else), then passes.
func Scripted(name string, responses ...string) *Engine {
	e := NewEngine(name)
	e.SetGenmove(func(_ game.Colour, n int) string {
		if n >= len(responses) {
			return "pass"
		}
		return responses[n]
	})
	return e
}
