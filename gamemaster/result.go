package gamemaster

import (
	"fmt"
	"strconv"

	"ringmaster/game"
)

// Result is the outcome of a finished game.
//
// Players maps each colour to a player code. CPUTimes is keyed by player
// code; a nil value means the time isn't known.
type Result struct {
	Players       map[game.Colour]string `json:"players"`
	WinningColour game.Colour            `json:"winning_colour"`
	SgfResult     string                 `json:"sgf_result"`
	IsForfeit     bool                   `json:"is_forfeit,omitempty"`
	IsJigo        bool                   `json:"is_jigo,omitempty"`
	IsUnknown     bool                   `json:"is_unknown,omitempty"`
	Detail        string                 `json:"detail,omitempty"`
	CPUTimes      map[string]*float64    `json:"cpu_times,omitempty"`
	GameID        string                 `json:"game_id,omitempty"`
}

func (r *Result) Player(colour game.Colour) string {
	return r.Players[colour]
}

// WinningPlayer returns the winner's code, or "" if there is no winner.
func (r *Result) WinningPlayer() string {
	if r.WinningColour == game.None {
		return ""
	}
	return r.Players[r.WinningColour]
}

// LosingPlayer returns the loser's code, or "" if there is no winner.
func (r *Result) LosingPlayer() string {
	if r.WinningColour == game.None {
		return ""
	}
	return r.Players[r.WinningColour.Opponent()]
}

// IsVoid reports whether the game was stopped without a result (the move
// limit was reached).
func (r *Result) IsVoid() bool {
	return r.SgfResult == "Void"
}

// Describe returns a one-line summary, eg "t1 beat t2 B+18".
func (r *Result) Describe() string {
	var s string
	switch {
	case r.WinningColour != game.None:
		s = fmt.Sprintf("%s beat %s %s", r.WinningPlayer(), r.LosingPlayer(), r.SgfResult)
	case r.IsJigo:
		s = fmt.Sprintf("%s vs %s jigo", r.Players[game.Black], r.Players[game.White])
	case r.IsVoid():
		s = fmt.Sprintf("%s vs %s void", r.Players[game.Black], r.Players[game.White])
	default:
		s = fmt.Sprintf("%s vs %s ?", r.Players[game.Black], r.Players[game.White])
	}
	if r.Detail != "" {
		s += " (" + r.Detail + ")"
	}
	return s
}

// FormatMargin formats a score margin without redundant digits.
func FormatMargin(margin float64) string {
	return strconv.FormatFloat(margin, 'f', -1, 64)
}

func resultFromScore(players map[game.Colour]string, score GameScore) *Result {
	r := &Result{Players: players, Detail: score.Detail}
	switch {
	case score.Unknown:
		r.SgfResult = "?"
		r.IsUnknown = true
		if r.Detail == "" {
			if score.ScorersDisagreed {
				r.Detail = "players disagreed"
			} else {
				r.Detail = "no score reported"
			}
		}
	case score.Winner == game.None:
		r.SgfResult = "0"
		r.IsJigo = true
	default:
		r.WinningColour = score.Winner
		r.SgfResult = score.Winner.Upper() + "+"
		if score.Margin != nil {
			r.SgfResult += FormatMargin(*score.Margin)
		}
	}
	return r
}

func resultFromGame(players map[game.Colour]string, g *game.Game) *Result {
	r := &Result{Players: players, WinningColour: g.Winner()}
	switch {
	case g.SeenForfeit():
		r.SgfResult = g.Winner().Upper() + "+F"
		r.IsForfeit = true
		r.Detail = g.ForfeitReason()
	case g.SeenResignation():
		r.SgfResult = g.Winner().Upper() + "+R"
	case g.SeenClaim():
		r.SgfResult = g.Winner().Upper() + "+"
		r.Detail = "claim"
	case g.HitMoveLimit():
		r.SgfResult = "Void"
		r.Detail = "hit move limit"
	default:
		r.SgfResult = "?"
		r.IsUnknown = true
	}
	return r
}
