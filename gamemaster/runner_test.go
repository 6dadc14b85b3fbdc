package gamemaster

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rooklift/sgf"
	"github.com/stretchr/testify/require"

	"ringmaster/game"
)

// scriptedBackend plays moves from a list, alternating colours, and scores
// passed-out games internally.
type scriptedBackend struct {
	size     int
	komi     float64
	moves    []MoveOutcome
	next     int
	comments map[game.Colour]string
	rejectAt int
	errorAt  int
	getErrAt int

	calls    []string
	notified []string
	fixed    map[game.Colour][]game.Move
	free     []game.Move
	ended    bool
}

func newScriptedBackend(moves ...string) *scriptedBackend {
	b := &scriptedBackend{
		rejectAt: -1,
		errorAt:  -1,
		getErrAt: -1,
		comments: map[game.Colour]string{},
		fixed:    map[game.Colour][]game.Move{},
	}
	for _, m := range moves {
		switch m {
		case "resign":
			b.moves = append(b.moves, Resigned())
		case "claim":
			b.moves = append(b.moves, Claimed())
		case "forfeit":
			b.moves = append(b.moves, Forfeited("ill-formed move"))
		default:
			b.moves = append(b.moves, MoveOutcome{Action: ActionMove, Move: mustVertex(m), Cookie: len(b.moves)})
		}
	}
	return b
}

func mustVertex(s string) game.Move {
	m, err := game.ParseVertex(s, 19)
	if err != nil {
		panic(err)
	}
	return m
}

func (b *scriptedBackend) StartNewGame(size int, komi float64) error {
	b.size, b.komi = size, komi
	b.calls = append(b.calls, "start")
	return nil
}

func (b *scriptedBackend) EndGame() {
	b.ended = true
	b.calls = append(b.calls, "end")
}

func (b *scriptedBackend) GetFreeHandicap(stones int) ([]game.Move, error) {
	return game.HandicapPoints(stones, b.size)
}

func (b *scriptedBackend) NotifyFreeHandicap(points []game.Move) error {
	b.free = points
	return nil
}

func (b *scriptedBackend) NotifyFixedHandicap(colour game.Colour, stones int, points []game.Move) error {
	b.fixed[colour] = points
	return nil
}

func (b *scriptedBackend) GetMove(colour game.Colour) (MoveOutcome, error) {
	b.calls = append(b.calls, "genmove "+colour.String())
	if b.next == b.getErrAt {
		return MoveOutcome{}, errors.New("transport error")
	}
	if b.next >= len(b.moves) {
		return Played(game.PassMove), nil
	}
	b.next++
	return b.moves[b.next-1], nil
}

func (b *scriptedBackend) GetLastMoveComment(colour game.Colour) string {
	b.calls = append(b.calls, "comment "+colour.String())
	return b.comments[colour]
}

func (b *scriptedBackend) NotifyMove(colour game.Colour, move game.Move) (NotifyOutcome, error) {
	b.calls = append(b.calls, "play "+colour.String()+" "+move.String())
	b.notified = append(b.notified, move.String())
	switch len(b.notified) - 1 {
	case b.rejectAt:
		return NotifyOutcome{Status: Reject, Msg: "illegal move"}, nil
	case b.errorAt:
		return NotifyOutcome{Status: NotifyError, Msg: "engine crashed"}, nil
	}
	return NotifyOutcome{Status: Accept}, nil
}

func (b *scriptedBackend) ScoreGame(board *game.Board) (GameScore, error) {
	score := game.ScoreBoard(board, b.komi, 0, game.CompensationNo)
	if score.Winner == game.None {
		return GameScore{}, nil
	}
	margin := score.Margin
	return GameScore{Winner: score.Winner, Margin: &margin}, nil
}

func runGame(t *testing.T, b *scriptedBackend, size int, komi float64, opts ...RunnerOption) *Runner {
	t.Helper()
	r := NewRunner(b, size, komi, 0, append([]RunnerOption{WithPlayers("t1", "t2")}, opts...)...)
	require.NoError(t, r.Prepare())
	require.NoError(t, r.Run())
	return r
}

func columns(size int) []string {
	var moves []string
	for i := 1; i <= size; i++ {
		moves = append(moves, fmt.Sprintf("E%d", i), fmt.Sprintf("G%d", i))
	}
	return moves
}

func TestRunnerPassedOut(t *testing.T) {
	t.Run("scores after two passes", func(t *testing.T) {
		b := newScriptedBackend(columns(9)...)
		r := runGame(t, b, 9, 0)
		res := r.Result()
		// Black owns columns A-E (45 points), White G-J (27); F is neutral.
		require.Equal(t, "B+18", res.SgfResult)
		require.Equal(t, game.Black, res.WinningColour)
		require.Equal(t, "t1", res.WinningPlayer())
		require.Equal(t, "t2", res.LosingPlayer())
		require.Equal(t, "t1 beat t2 B+18", res.Describe())
		require.Len(t, r.Moves(), 20)
		require.True(t, b.ended)
	})

	t.Run("komi equal to the margin is jigo", func(t *testing.T) {
		r := runGame(t, newScriptedBackend(columns(9)...), 9, 18)
		res := r.Result()
		require.Equal(t, "0", res.SgfResult)
		require.True(t, res.IsJigo)
		require.Equal(t, game.None, res.WinningColour)
		require.Equal(t, "t1 vs t2 jigo", res.Describe())
	})

	t.Run("swapping players mirrors the result", func(t *testing.T) {
		moves := []string{"C3", "D4", "C4", "D3", "C5", "D5", "pass", "pass"}
		first := runGame(t, newScriptedBackend(moves...), 9, 0.5)
		r := NewRunner(newScriptedBackend(moves...), 9, 0.5, 0, WithPlayers("t2", "t1"))
		require.NoError(t, r.Prepare())
		require.NoError(t, r.Run())
		second := r.Result()
		require.Equal(t, first.Result().SgfResult, second.SgfResult)
		require.Equal(t, first.Result().WinningPlayer(), second.LosingPlayer())
		require.Equal(t, first.Result().LosingPlayer(), second.WinningPlayer())
	})
}

func TestRunnerForfeits(t *testing.T) {
	t.Run("move to an occupied point", func(t *testing.T) {
		r := runGame(t, newScriptedBackend("D3", "D3"), 9, 0)
		res := r.Result()
		require.Equal(t, "B+F", res.SgfResult)
		require.True(t, res.IsForfeit)
		require.Equal(t, "attempted move to occupied point D3", res.Detail)
		require.Len(t, r.Moves(), 1)
		require.Equal(t, "D3", r.Moves()[0].Move.String())
		require.Equal(t, "t1 beat t2 B+F (attempted move to occupied point D3)", res.Describe())
	})

	t.Run("simple ko", func(t *testing.T) {
		r := runGame(t, newScriptedBackend("C5", "F5", "D6", "E4", "D4", "E6", "E5", "D5", "E5"), 9, 0)
		res := r.Result()
		require.Equal(t, "W+F", res.SgfResult)
		require.Equal(t, "attempted move to ko-forbidden point E5", res.Detail)
		require.Len(t, r.Moves(), 8)
	})

	t.Run("opponent rejects the move", func(t *testing.T) {
		b := newScriptedBackend("C3", "D4")
		b.rejectAt = 1
		r := runGame(t, b, 9, 0)
		res := r.Result()
		require.Equal(t, "B+F", res.SgfResult)
		require.Equal(t, "t1 claims move D4 is illegal", res.Detail)
		require.Len(t, r.Moves(), 2, "The rejected move stays in the record")
	})

	t.Run("opponent error forfeits the opponent", func(t *testing.T) {
		b := newScriptedBackend("C3", "D4")
		b.errorAt = 0
		r := runGame(t, b, 9, 0)
		require.Equal(t, "B+F", r.Result().SgfResult)
		require.Equal(t, "engine crashed", r.Result().Detail)
	})

	t.Run("forfeit outcome from the backend", func(t *testing.T) {
		b := newScriptedBackend("C3", "forfeit")
		b.comments[game.White] = "confused"
		r := runGame(t, b, 9, 0)
		require.Equal(t, "B+F", r.Result().SgfResult)
		require.Equal(t, "ill-formed move", r.Result().Detail)
		require.Equal(t, "confused", r.FinalDiagnostic())
	})
}

func TestRunnerOtherEndings(t *testing.T) {
	t.Run("resignation", func(t *testing.T) {
		b := newScriptedBackend("C3", "resign")
		b.comments[game.White] = "hopeless"
		r := runGame(t, b, 9, 0)
		require.Equal(t, "B+R", r.Result().SgfResult)
		require.Equal(t, "hopeless", r.FinalDiagnostic())
	})

	t.Run("claim", func(t *testing.T) {
		r := runGame(t, newScriptedBackend("C3", "claim"), 9, 0)
		res := r.Result()
		require.Equal(t, "W+", res.SgfResult)
		require.Equal(t, game.White, res.WinningColour)
		require.Equal(t, "claim", res.Detail)
	})

	t.Run("move limit", func(t *testing.T) {
		b := newScriptedBackend("C3", "D4", "C4", "D3")
		r := NewRunner(b, 9, 0, 3, WithPlayers("t1", "t2"))
		require.NoError(t, r.Prepare())
		require.NoError(t, r.Run())
		res := r.Result()
		require.Equal(t, "Void", res.SgfResult)
		require.True(t, res.IsVoid())
		require.False(t, res.IsUnknown)
		require.Equal(t, "t1 vs t2 void (hit move limit)", res.Describe())
		require.Len(t, r.Moves(), 3)
	})

	t.Run("unknown score", func(t *testing.T) {
		res := resultFromScore(map[game.Colour]string{game.Black: "t1", game.White: "t2"}, GameScore{Unknown: true})
		require.Equal(t, "?", res.SgfResult)
		require.True(t, res.IsUnknown)
		require.Equal(t, "t1 vs t2 ? (no score reported)", res.Describe())
	})

	t.Run("winner without margin", func(t *testing.T) {
		res := resultFromScore(nil, GameScore{Winner: game.White})
		require.Equal(t, "W+", res.SgfResult)
	})
}

func TestRunnerOrdering(t *testing.T) {
	b := newScriptedBackend("C3", "pass", "pass")
	runGame(t, b, 9, 0)
	require.Equal(t, []string{
		"start",
		"genmove b", "comment b", "play b C3",
		"genmove w", "comment w", "play w pass",
		"genmove b", "comment b",
		"end",
	}, b.calls)
}

func TestRunnerErrors(t *testing.T) {
	t.Run("backend error leaves no result", func(t *testing.T) {
		b := newScriptedBackend("C3", "D4", "C4")
		b.getErrAt = 2
		r := NewRunner(b, 9, 0, 0)
		require.NoError(t, r.Prepare())
		require.Error(t, r.Run())
		require.Nil(t, r.Result())
		require.Len(t, r.Moves(), 2)
	})

	t.Run("callback error propagates", func(t *testing.T) {
		seen := 0
		stop := errors.New("stop")
		r := NewRunner(newScriptedBackend("C3", "D4", "C4"), 9, 0, 0,
			WithAfterMoveCallback(func(colour game.Colour, move game.Move, board *game.Board) error {
				seen++
				if seen == 2 {
					require.Equal(t, game.White, board.Get(move.Row, move.Col))
					return stop
				}
				return nil
			}))
		require.NoError(t, r.Prepare())
		require.ErrorIs(t, r.Run(), stop)
		require.Nil(t, r.Result())
		require.Len(t, r.Moves(), 2)
	})
}

func TestRunnerHandicap(t *testing.T) {
	t.Run("fixed handicap notifies both players", func(t *testing.T) {
		b := newScriptedBackend()
		r := NewRunner(b, 9, 0, 0)
		require.NoError(t, r.Prepare())
		require.NoError(t, r.SetHandicap(3, false))
		require.Equal(t, game.White, r.Game().NextPlayer())
		require.Len(t, b.fixed[game.Black], 3)
		require.Equal(t, b.fixed[game.Black], b.fixed[game.White])
		require.NoError(t, r.Run())
		require.Equal(t, "genmove w", b.calls[1])
	})

	t.Run("free handicap is relayed", func(t *testing.T) {
		b := newScriptedBackend()
		r := NewRunner(b, 9, 0, 0)
		require.NoError(t, r.Prepare())
		require.NoError(t, r.SetHandicap(2, true))
		require.Len(t, b.free, 2)
		require.Equal(t, 2, r.Handicap())
	})

	t.Run("too many fixed stones is an error", func(t *testing.T) {
		r := NewRunner(newScriptedBackend(), 8, 0, 0)
		require.Error(t, r.SetHandicap(5, false))
	})
}

type forfeitingBackend struct{ *scriptedBackend }

func (forfeitingBackend) GetFreeHandicap(int) ([]game.Move, error) {
	return nil, &ForfeitError{Colour: game.Black, Reason: "invalid handicap response"}
}

func TestRunnerHandicapForfeit(t *testing.T) {
	r := NewRunner(forfeitingBackend{newScriptedBackend()}, 9, 0, 0, WithPlayers("t1", "t2"))
	require.NoError(t, r.Prepare())
	require.NoError(t, r.SetHandicap(2, true))
	require.True(t, r.Game().IsOver())
	require.NoError(t, r.Run())
	require.Equal(t, "W+F", r.Result().SgfResult)
	require.Equal(t, "invalid handicap response", r.Result().Detail)
}

func TestWriteSGF(t *testing.T) {
	b := newScriptedBackend("C3", "resign")
	b.comments[game.Black] = "good move"
	b.comments[game.White] = "I give up"
	r := runGame(t, b, 9, 6.5)
	path := filepath.Join(t.TempDir(), "game.sgf")
	require.NoError(t, r.WriteSGF(path, "game 0"))

	root, err := sgf.Load(path)
	require.NoError(t, err)
	for key, want := range map[string]string{
		"SZ": "9", "KM": "6.5", "RE": "B+R", "PB": "t1", "PW": "t2", "C": "game 0",
	} {
		got, ok := root.GetValue(key)
		require.True(t, ok, key)
		require.Equal(t, want, got, key)
	}
	ap, _ := root.GetValue("AP")
	require.Contains(t, ap, "ringmaster:")

	require.Len(t, root.Children(), 1)
	node := root.Children()[0]
	move, ok := node.GetValue("B")
	require.True(t, ok)
	require.Equal(t, "cg", move)
	comment, _ := node.GetValue("C")
	require.Contains(t, comment, "good move")
	require.Contains(t, comment, "<<<\nI give up\n>>>")
}

func TestSGFPasses(t *testing.T) {
	require.Equal(t, "tt", sgfPoint(game.PassMove, 19))
	require.Equal(t, "", sgfPoint(game.PassMove, 21))
	require.Equal(t, "aa", sgfPoint(game.Point(18, 0), 19))
	require.Equal(t, "ai", sgfPoint(game.Point(0, 0), 9))
}

func TestSGFHandicap(t *testing.T) {
	b := newScriptedBackend()
	r := NewRunner(b, 9, 0.5, 0)
	require.NoError(t, r.Prepare())
	require.NoError(t, r.SetHandicap(2, false))
	require.NoError(t, r.Run())
	root := r.MakeSGF()
	ha, _ := root.GetValue("HA")
	require.Equal(t, "2", ha)
	require.Len(t, root.AllValues("AB"), 2)
	require.Len(t, root.Children(), 1)
	w, ok := root.Children()[0].GetValue("W")
	require.True(t, ok)
	require.Equal(t, "tt", w)
}
