package game

import (
	"errors"
	"fmt"
)

var (
	ErrGameOver    = errors.New("game is already over")
	ErrWrongPlayer = errors.New("move out of turn")
)

// Game tracks the state of a game in progress: the position, whose turn it
// is, and how (and whether) the game has ended.
type Game struct {
	board      *Board
	nextPlayer Colour
	moveCount  int
	passCount  int
	koPoint    *Move
	moveLimit  int

	passedOut       bool
	seenResignation bool
	seenClaim       bool
	seenForfeit     bool
	hitMoveLimit    bool
	winner          Colour
	forfeitReason   string

	over       bool
	onGameOver func(*Game)
}

type Option func(*Game)

// WithMoveLimit ends the game (void) once this many moves have been played.
func WithMoveLimit(limit int) Option {
	return func(g *Game) {
		g.moveLimit = limit
	}
}

// WithGameOverCallback registers fn to run once, when the game first ends.
func WithGameOverCallback(fn func(*Game)) Option {
	return func(g *Game) {
		g.onGameOver = fn
	}
}

// NewGame starts a game on an empty board with Black to play.
func NewGame(size int, opts ...Option) *Game {
	g := &Game{
		board:      NewBoard(size),
		nextPlayer: Black,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetHandicap places black handicap stones; White plays next.
func (g *Game) SetHandicap(points []Move) error {
	if g.moveCount > 0 || !g.board.IsEmpty() {
		return errors.New("handicap must be set on an empty board")
	}
	for _, p := range points {
		if p.Pass || !g.board.OnBoard(p.Row, p.Col) {
			return fmt.Errorf("invalid handicap point %s", p)
		}
		if g.board.Get(p.Row, p.Col) != None {
			return fmt.Errorf("duplicate handicap point %s", p)
		}
		g.board.Set(p.Row, p.Col, Black)
	}
	g.nextPlayer = White
	return nil
}

func (g *Game) Board() *Board { return g.board }
func (g *Game) NextPlayer() Colour { return g.nextPlayer }
func (g *Game) MoveCount() int { return g.moveCount }
func (g *Game) PassCount() int { return g.passCount }
func (g *Game) KoPoint() *Move { return g.koPoint }
func (g *Game) IsOver() bool { return g.over }
func (g *Game) PassedOut() bool { return g.passedOut }
func (g *Game) SeenResignation() bool { return g.seenResignation }
func (g *Game) SeenClaim() bool { return g.seenClaim }
func (g *Game) SeenForfeit() bool { return g.seenForfeit }
func (g *Game) HitMoveLimit() bool { return g.hitMoveLimit }
func (g *Game) ForfeitReason() string { return g.forfeitReason }

// Winner is None unless the game ended by resignation, claim or forfeit.
func (g *Game) Winner() Colour { return g.winner }

func (g *Game) setOver() {
	if g.over {
		return
	}
	g.over = true
	if g.onGameOver != nil {
		g.onGameOver(g)
	}
}

// RecordMove plays a move for the given colour.
//
// A move to an occupied or ko-forbidden point does not return an error: it
// ends the game as a forfeit by the mover.
func (g *Game) RecordMove(colour Colour, move Move) error {
	if g.over {
		return ErrGameOver
	}
	if colour != g.nextPlayer {
		return ErrWrongPlayer
	}
	if move.Pass {
		g.passCount++
		g.koPoint = nil
	} else {
		if !g.board.OnBoard(move.Row, move.Col) {
			return fmt.Errorf("move %s is off the board", move)
		}
		if g.koPoint != nil && *g.koPoint == move {
			g.forfeit(colour, fmt.Sprintf("attempted move to ko-forbidden point %s", move))
			return nil
		}
		ko, err := g.board.Play(move.Row, move.Col, colour)
		if err != nil {
			g.forfeit(colour, fmt.Sprintf("attempted move to occupied point %s", move))
			return nil
		}
		g.koPoint = ko
		g.passCount = 0
	}
	g.moveCount++
	g.nextPlayer = colour.Opponent()
	if g.passCount >= 2 {
		g.passedOut = true
		g.setOver()
	} else if g.moveLimit > 0 && g.moveCount >= g.moveLimit {
		g.hitMoveLimit = true
		g.setOver()
	}
	return nil
}

func (g *Game) forfeit(colour Colour, reason string) {
	g.seenForfeit = true
	g.winner = colour.Opponent()
	g.forfeitReason = reason
	g.setOver()
}

// RecordResignationBy ends the game with the other colour winning.
func (g *Game) RecordResignationBy(colour Colour) error {
	if g.over {
		return ErrGameOver
	}
	g.seenResignation = true
	g.winner = colour.Opponent()
	g.setOver()
	return nil
}

// RecordClaimBy ends the game as a win claimed by colour.
func (g *Game) RecordClaimBy(colour Colour) error {
	if g.over {
		return ErrGameOver
	}
	g.seenClaim = true
	g.winner = colour
	g.setOver()
	return nil
}

// RecordForfeitBy ends the game as a loss for colour.
func (g *Game) RecordForfeitBy(colour Colour, reason string) error {
	if g.over {
		return ErrGameOver
	}
	g.forfeit(colour, reason)
	return nil
}
