package gamemaster

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ringmaster/game"
)

// HistoryMove is one move of a finished or running game.
type HistoryMove struct {
	Colour  game.Colour
	Move    game.Move
	Comment string
	Cookie  any
}

// AfterMoveFunc runs after each move that was played and accepted. An
// error from it stops the game.
type AfterMoveFunc func(colour game.Colour, move game.Move, board *game.Board) error

// Runner plays a single game against a Backend.
//
// Call Prepare, optionally SetHandicap, then Run. After Run returns
// without error, Result is set.
type Runner struct {
	backend   Backend
	size      int
	komi      float64
	moveLimit int
	players   map[game.Colour]string
	afterMove AfterMoveFunc
	logger    zerolog.Logger

	game            *game.Game
	handicap        int
	handicapPoints  []game.Move
	moves           []HistoryMove
	finalDiagnostic string
	result          *Result
	startTime       time.Time
}

type RunnerOption func(*Runner)

// WithPlayers sets the player codes used in the result.
func WithPlayers(black, white string) RunnerOption {
	return func(r *Runner) {
		r.players = map[game.Colour]string{game.Black: black, game.White: white}
	}
}

func WithAfterMoveCallback(fn AfterMoveFunc) RunnerOption {
	return func(r *Runner) {
		r.afterMove = fn
	}
}

func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner returns a Runner for a game of the given size and komi. A
// moveLimit of zero means no limit.
func NewRunner(backend Backend, size int, komi float64, moveLimit int, opts ...RunnerOption) *Runner {
	r := &Runner{
		backend:   backend,
		size:      size,
		komi:      komi,
		moveLimit: moveLimit,
		players:   map[game.Colour]string{game.Black: "b", game.White: "w"},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.game = game.NewGame(size, game.WithMoveLimit(moveLimit))
	return r
}

// Prepare starts a new game in the backend.
func (r *Runner) Prepare() error {
	r.startTime = time.Now()
	return r.backend.StartNewGame(r.size, r.komi)
}

// SetHandicap places handicap stones. With isFree, Black chooses where
// they go; otherwise the standard points are used.
//
// A *ForfeitError from the backend ends the game, and SetHandicap returns
// nil.
func (r *Runner) SetHandicap(stones int, isFree bool) error {
	var err error
	if isFree {
		err = r.setFreeHandicap(stones)
	} else {
		err = r.setFixedHandicap(stones)
	}
	var forfeit *ForfeitError
	if errors.As(err, &forfeit) {
		r.logger.Debug().Str("colour", forfeit.Colour.Name()).Msg(forfeit.Reason)
		return r.game.RecordForfeitBy(forfeit.Colour, forfeit.Reason)
	}
	return err
}

func (r *Runner) setFreeHandicap(stones int) error {
	points, err := r.backend.GetFreeHandicap(stones)
	if err != nil {
		return err
	}
	if len(points) != stones {
		return &ForfeitError{game.Black, fmt.Sprintf(
			"wrong number of handicap stones: wanted %d, got %d", stones, len(points))}
	}
	if err := r.game.SetHandicap(points); err != nil {
		return &ForfeitError{game.Black, err.Error()}
	}
	r.handicap = stones
	r.handicapPoints = points
	return r.backend.NotifyFreeHandicap(points)
}

func (r *Runner) setFixedHandicap(stones int) error {
	points, err := game.HandicapPoints(stones, r.size)
	if err != nil {
		return err
	}
	if err := r.game.SetHandicap(points); err != nil {
		return err
	}
	r.handicap = stones
	r.handicapPoints = points
	for _, colour := range game.Colours {
		if err := r.backend.NotifyFixedHandicap(colour, stones, points); err != nil {
			return err
		}
	}
	return nil
}

// Run plays the game until it is over.
//
// An error from the backend or the after-move callback stops the game
// with no result; Moves still reports the moves that were played.
func (r *Runner) Run() error {
	for !r.game.IsOver() {
		if err := r.playOne(); err != nil {
			return err
		}
	}
	r.backend.EndGame()
	if r.game.PassedOut() {
		score, err := r.backend.ScoreGame(r.game.Board())
		if err != nil {
			return err
		}
		r.result = resultFromScore(r.players, score)
	} else {
		r.result = resultFromGame(r.players, r.game)
	}
	r.logger.Debug().Msgf("game over: %s", r.result.Describe())
	return nil
}

func (r *Runner) playOne() error {
	colour := r.game.NextPlayer()
	outcome, err := r.backend.GetMove(colour)
	if err != nil {
		return err
	}
	switch outcome.Action {
	case ActionResign:
		r.finalDiagnostic = r.backend.GetLastMoveComment(colour)
		return r.game.RecordResignationBy(colour)
	case ActionClaim:
		r.finalDiagnostic = r.backend.GetLastMoveComment(colour)
		return r.game.RecordClaimBy(colour)
	case ActionForfeit:
		r.finalDiagnostic = r.backend.GetLastMoveComment(colour)
		return r.game.RecordForfeitBy(colour, outcome.Reason)
	}

	move := outcome.Move
	if err := r.game.RecordMove(colour, move); err != nil {
		return err
	}
	if r.game.SeenForfeit() {
		r.finalDiagnostic = r.backend.GetLastMoveComment(colour)
		return nil
	}
	r.moves = append(r.moves, HistoryMove{
		Colour:  colour,
		Move:    move,
		Comment: r.backend.GetLastMoveComment(colour),
		Cookie:  outcome.Cookie,
	})
	if !r.game.IsOver() {
		notified, err := r.backend.NotifyMove(colour, move)
		if err != nil {
			return err
		}
		switch notified.Status {
		case Reject:
			reason := fmt.Sprintf("%s claims move %s is illegal", r.players[colour.Opponent()], move)
			return r.game.RecordForfeitBy(colour, reason)
		case NotifyError:
			return r.game.RecordForfeitBy(colour.Opponent(), notified.Msg)
		}
	}
	if r.afterMove != nil {
		return r.afterMove(colour, move, r.game.Board())
	}
	return nil
}

// Result returns the game result, or nil if Run hasn't completed.
func (r *Runner) Result() *Result { return r.result }

// Moves returns the moves played so far, not including a forfeited move.
func (r *Runner) Moves() []HistoryMove { return r.moves }

// FinalDiagnostic is the last comment from a player who resigned, claimed
// or forfeited.
func (r *Runner) FinalDiagnostic() string { return r.finalDiagnostic }

func (r *Runner) Game() *game.Game { return r.game }

func (r *Runner) Handicap() int { return r.handicap }

func (r *Runner) StartTime() time.Time { return r.startTime }
