package gamemaster

import (
	"strconv"
	"strings"

	"github.com/rooklift/sgf"

	"ringmaster/game"
	"ringmaster/meta"
)

// sgfPoint converts a move to SGF coordinates. Passes are "tt" on boards
// up to 19x19 and empty on larger ones.
func sgfPoint(move game.Move, size int) string {
	if move.IsPass() {
		if size <= 19 {
			return "tt"
		}
		return ""
	}
	return string([]byte{byte('a' + move.Col), byte('a' + size - 1 - move.Row)})
}

// MakeSGF builds an SGF record of the game so far. The returned node is
// the root; the caller may add properties (EV, RO, a root comment) before
// saving.
func (r *Runner) MakeSGF() *sgf.Node {
	root := sgf.NewTree(r.size)
	root.SetValue("FF", "4")
	root.SetValue("GM", "1")
	root.SetValue("CA", "UTF-8")
	root.SetValue("SZ", strconv.Itoa(r.size))
	root.SetValue("KM", FormatMargin(r.komi))
	root.SetValue("AP", meta.Application())
	if !r.startTime.IsZero() {
		root.SetValue("DT", r.startTime.Format("2006-01-02"))
	}
	root.SetValue("PB", r.players[game.Black])
	root.SetValue("PW", r.players[game.White])
	if r.handicap > 0 {
		root.SetValue("HA", strconv.Itoa(r.handicap))
		for _, p := range r.handicapPoints {
			root.AddValue("AB", sgfPoint(p, r.size))
		}
	}
	if r.result != nil {
		root.SetValue("RE", r.result.SgfResult)
	}

	node := root
	for _, m := range r.moves {
		node = sgf.NewNode(node)
		node.SetValue(strings.ToUpper(m.Colour.String()), sgfPoint(m.Move, r.size))
		if m.Comment != "" {
			node.SetValue("C", m.Comment)
		}
	}
	if r.finalDiagnostic != "" {
		comment, _ := node.GetValue("C")
		if comment != "" {
			comment += "\n\n"
		}
		node.SetValue("C", comment+"final message from "+r.lastMover()+": <<<\n"+r.finalDiagnostic+"\n>>>")
	}
	return root
}

func (r *Runner) lastMover() string {
	if w := r.game.Winner(); w != game.None {
		if r.game.SeenClaim() {
			return r.players[w]
		}
		return r.players[w.Opponent()]
	}
	return r.players[r.game.NextPlayer()]
}

// WriteSGF writes the game record to path, with an optional root comment.
func (r *Runner) WriteSGF(path, comment string) error {
	root := r.MakeSGF()
	if comment != "" {
		root.SetValue("C", comment)
	}
	return root.Save(path)
}
