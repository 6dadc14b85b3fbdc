package gamemaster

import (
	"fmt"

	"ringmaster/game"
)

// Action is what a player chose to do when asked for a move.
type Action uint8

const (
	ActionMove Action = iota // includes pass
	ActionResign
	ActionClaim
	ActionForfeit
)

func (a Action) String() string {
	switch a {
	case ActionResign:
		return "resign"
	case ActionClaim:
		return "claim"
	case ActionForfeit:
		return "forfeit"
	}
	return "move"
}

// MoveOutcome is a backend's answer to GetMove.
//
// Move is set for ActionMove; Reason for ActionForfeit. Cookie is opaque
// state a move generator wants attached to the history.
type MoveOutcome struct {
	Action Action
	Move   game.Move
	Reason string
	Cookie any
}

func Played(move game.Move) MoveOutcome { return MoveOutcome{Action: ActionMove, Move: move} }
func Resigned() MoveOutcome             { return MoveOutcome{Action: ActionResign} }
func Claimed() MoveOutcome              { return MoveOutcome{Action: ActionClaim} }
func Forfeited(reason string) MoveOutcome {
	return MoveOutcome{Action: ActionForfeit, Reason: reason}
}

// NotifyStatus is how the opponent took a move it was told about.
type NotifyStatus uint8

const (
	Accept NotifyStatus = iota
	// Reject means the opponent considers the move illegal.
	Reject
	// NotifyError means the opponent failed in some other way.
	NotifyError
)

type NotifyOutcome struct {
	Status NotifyStatus
	Msg    string
}

// GameScore is a backend's verdict on a passed-out game.
//
// Winner is None for jigo and for unknown results. Margin is nil when the
// winner is known but the margin isn't.
type GameScore struct {
	Winner           game.Colour
	Margin           *float64
	Unknown          bool
	ScorersDisagreed bool
	Detail           string
}

// Jigo reports whether the score is a draw.
func (s GameScore) Jigo() bool {
	return !s.Unknown && s.Winner == game.None
}

// ForfeitError may be returned by the handicap methods of a Backend to make
// the player of the given colour lose the game, rather than voiding it.
type ForfeitError struct {
	Colour game.Colour
	Reason string
}

func (e *ForfeitError) Error() string {
	return fmt.Sprintf("%s forfeits: %s", e.Colour.Name(), e.Reason)
}

// Backend is the Runner's view of the players. Errors returned by its
// methods (other than *ForfeitError) abort the game.
type Backend interface {
	StartNewGame(size int, komi float64) error
	// EndGame is called once the game is over, before scoring.
	EndGame()
	GetFreeHandicap(stones int) ([]game.Move, error)
	NotifyFreeHandicap(points []game.Move) error
	NotifyFixedHandicap(colour game.Colour, stones int, points []game.Move) error
	GetMove(colour game.Colour) (MoveOutcome, error)
	// GetLastMoveComment returns the player's commentary on its last
	// move, or "".
	GetLastMoveComment(colour game.Colour) string
	NotifyMove(colour game.Colour, move game.Move) (NotifyOutcome, error)
	ScoreGame(board *game.Board) (GameScore, error)
}
