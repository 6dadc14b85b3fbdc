// Package gtptest provides scripted GTP engines for tests.
package gtptest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"ringmaster/game"
)

// Handler implements one GTP command. A returned error becomes a failure
// response carrying the error's text.
type Handler func(args []string) (string, error)

// errQuit makes Serve return after sending the response.
var errQuit = errors.New("quit")

// ErrExit, returned by a Handler, makes Serve return without responding,
// as if the engine had died.
var ErrExit = errors.New("exit")

// Engine is a minimal GTP engine with pluggable commands. It keeps its own
// board so that it can reject illegal plays.
type Engine struct {
	Name    string
	Version string
	// Stderr receives diagnostics; nil discards them.
	Stderr io.Writer

	handlers  map[string]Handler
	size      int
	komi      float64
	board     *game.Board
	moves     int
	genmove   func(colour game.Colour, n int) string
	generated int
	commands  []string
	exitOn    map[string]bool
	cpuTime   *float64
	stderrLen int
}

// NewEngine returns an engine that passes whenever asked for a move.
func NewEngine(name string) *Engine {
	e := &Engine{
		Name:     name,
		Version:  "1.0",
		handlers: make(map[string]Handler),
		size:     19,
		board:    game.NewBoard(19),
		exitOn:   make(map[string]bool),
		genmove:  func(game.Colour, int) string { return "pass" },
	}
	e.Register("protocol_version", func([]string) (string, error) { return "2", nil })
	e.Register("name", func([]string) (string, error) { return e.Name, nil })
	e.Register("version", func([]string) (string, error) { return e.Version, nil })
	e.Register("known_command", e.handleKnownCommand)
	e.Register("list_commands", e.handleListCommands)
	e.Register("quit", func([]string) (string, error) { return "", errQuit })
	e.Register("boardsize", e.handleBoardsize)
	e.Register("clear_board", e.handleClearBoard)
	e.Register("komi", e.handleKomi)
	e.Register("play", e.handlePlay)
	e.Register("genmove", e.handleGenmove)
	e.Register("final_score", e.handleFinalScore)
	e.Register("fixed_handicap", e.handleFixedHandicap)
	e.Register("place_free_handicap", e.handlePlaceFreeHandicap)
	e.Register("set_free_handicap", e.handleSetFreeHandicap)
	return e
}

// Register adds or replaces a command.
func (e *Engine) Register(command string, h Handler) {
	e.handlers[command] = h
}

// Unregister removes a command.
func (e *Engine) Unregister(command string) {
	delete(e.handlers, command)
}

// ExitOn makes the engine exit without responding when it receives command.
func (e *Engine) ExitOn(command string) {
	e.exitOn[command] = true
}

// Commands returns every command line the engine has received.
func (e *Engine) Commands() []string {
	return e.commands
}

// SetGenmove replaces the move generator. It is passed the number of moves
// already generated in this game; the returned string is sent verbatim as
// the genmove response.
func (e *Engine) SetGenmove(fn func(colour game.Colour, n int) string) {
	e.genmove = fn
}

// SetCPUTime makes the engine implement gomill-cpu_time.
func (e *Engine) SetCPUTime(seconds float64) {
	e.cpuTime = &seconds
	e.Register("gomill-cpu_time", func([]string) (string, error) {
		return strconv.FormatFloat(*e.cpuTime, 'f', -1, 64), nil
	})
}

// EnableComments makes the engine explain its moves.
func (e *Engine) EnableComments() {
	e.Register("gomill-explain_last_move", func([]string) (string, error) {
		return fmt.Sprintf("%s move %d", e.Name, e.moves), nil
	})
}

// EnableGenmoveEx implements gomill-genmove_ex, whose "claim" form claims
// the win once the move generator returns "claim".
func (e *Engine) EnableGenmoveEx() {
	e.Register("gomill-genmove_ex", func(args []string) (string, error) {
		if len(args) < 1 {
			return "", errors.New("missing arguments")
		}
		return e.handleGenmove(args[:1])
	})
}

// FloodStderr writes n bytes to stderr before each genmove response.
func (e *Engine) FloodStderr(n int) {
	e.stderrLen = n
}

// Board is the engine's view of the position.
func (e *Engine) Board() *game.Board {
	return e.board
}

func (e *Engine) diagnostic(format string, args ...any) {
	if e.Stderr != nil {
		fmt.Fprintf(e.Stderr, format+"\n", args...)
	}
}

// Serve reads commands from r and writes responses to w until input ends
// or the engine is told to quit.
func (e *Engine) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		e.commands = append(e.commands, line)
		fields := strings.Fields(line)
		command, args := fields[0], fields[1:]
		if e.exitOn[command] {
			return nil
		}
		h, ok := e.handlers[command]
		var response string
		var err error
		if ok {
			response, err = h(args)
		} else {
			err = errors.New("unknown command")
		}
		if errors.Is(err, ErrExit) {
			return nil
		}
		switch {
		case err == nil || errors.Is(err, errQuit):
			_, werr := fmt.Fprintf(w, "= %s\n\n", response)
			if werr != nil {
				return werr
			}
		default:
			_, werr := fmt.Fprintf(w, "? %s\n\n", err.Error())
			if werr != nil {
				return werr
			}
		}
		if errors.Is(err, errQuit) {
			return nil
		}
	}
	return scanner.Err()
}

func (e *Engine) handleKnownCommand(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("wrong number of arguments")
	}
	_, ok := e.handlers[args[0]]
	return strconv.FormatBool(ok), nil
}

func (e *Engine) handleListCommands([]string) (string, error) {
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

func (e *Engine) handleBoardsize(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("wrong number of arguments")
	}
	size, err := strconv.Atoi(args[0])
	if err != nil || size < 1 || size > game.MaxBoardSize {
		return "", errors.New("unacceptable size")
	}
	e.size = size
	e.board = game.NewBoard(size)
	e.moves = 0
	e.generated = 0
	return "", nil
}

func (e *Engine) handleClearBoard([]string) (string, error) {
	e.board = game.NewBoard(e.size)
	e.moves = 0
	e.generated = 0
	return "", nil
}

func (e *Engine) handleKomi(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("wrong number of arguments")
	}
	komi, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "", errors.New("syntax error")
	}
	e.komi = komi
	return "", nil
}

func (e *Engine) place(colour game.Colour, vertex string) error {
	m, err := game.ParseVertex(vertex, e.size)
	if err != nil {
		return errors.New("invalid coordinate")
	}
	if m.Pass {
		return nil
	}
	if _, err := e.board.Play(m.Row, m.Col, colour); err != nil {
		return errors.New("illegal move")
	}
	return nil
}

func (e *Engine) handlePlay(args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.New("wrong number of arguments")
	}
	colour, err := game.ParseColour(args[0])
	if err != nil {
		return "", errors.New("invalid color")
	}
	if err := e.place(colour, args[1]); err != nil {
		return "", err
	}
	e.moves++
	return "", nil
}

func (e *Engine) handleGenmove(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("wrong number of arguments")
	}
	colour, err := game.ParseColour(args[0])
	if err != nil {
		return "", errors.New("invalid color")
	}
	if e.stderrLen > 0 {
		e.diagnostic("%s", strings.Repeat("x", e.stderrLen))
	}
	move := e.genmove(colour, e.generated)
	e.generated++
	switch strings.ToLower(move) {
	case "resign", "claim", "pass", "":
	default:
		// Record our own move; an illegal one is still sent, so that the
		// controller sees it.
		_ = e.place(colour, move)
	}
	e.moves++
	return move, nil
}

func (e *Engine) handleFinalScore([]string) (string, error) {
	score := game.ScoreBoard(e.board, e.komi, 0, game.CompensationNo)
	if score.Winner == game.None {
		return "0", nil
	}
	return fmt.Sprintf("%s+%s", score.Winner.Upper(), strconv.FormatFloat(score.Margin, 'f', -1, 64)), nil
}

func (e *Engine) handleFixedHandicap(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("wrong number of arguments")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "", errors.New("invalid number of stones")
	}
	points, err := game.HandicapPoints(n, e.size)
	if err != nil {
		return "", errors.New("invalid number of stones")
	}
	for _, p := range points {
		e.board.Set(p.Row, p.Col, game.Black)
	}
	return game.FormatVertices(points), nil
}

func (e *Engine) handlePlaceFreeHandicap(args []string) (string, error) {
	return e.handleFixedHandicap(args)
}

func (e *Engine) handleSetFreeHandicap(args []string) (string, error) {
	for _, v := range args {
		if err := e.place(game.Black, v); err != nil {
			return "", err
		}
	}
	return "", nil
}
