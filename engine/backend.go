package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ringmaster/game"
	"ringmaster/gamemaster"
	"ringmaster/gtp"
)

// GTPBackend runs a game between two GTP engines.
type GTPBackend struct {
	controllers map[game.Colour]*gtp.Controller
	codes       map[game.Colour]string
	startup     map[game.Colour][][]string
	allowClaim  map[game.Colour]bool
	canClaim    map[game.Colour]bool

	size           int
	komi           float64
	handicap       int
	internalScorer bool
	compensation   game.HandicapCompensation
	scorers        []game.Colour
}

type BackendOption func(*GTPBackend)

// WithInternalScorer scores passed-out games by area rather than asking
// the players.
func WithInternalScorer(compensation game.HandicapCompensation) BackendOption {
	return func(b *GTPBackend) {
		b.internalScorer = true
		b.compensation = compensation
	}
}

// WithScorers sets which players are asked for final_score, in order.
func WithScorers(colours ...game.Colour) BackendOption {
	return func(b *GTPBackend) {
		b.scorers = colours
	}
}

// WithStartupCommands sets commands to send to a player after each new
// game is set up.
func WithStartupCommands(colour game.Colour, commands [][]string) BackendOption {
	return func(b *GTPBackend) {
		b.startup[colour] = commands
	}
}

// WithAllowClaim lets a player claim a win, if its engine supports
// gomill-genmove_ex.
func WithAllowClaim(colour game.Colour) BackendOption {
	return func(b *GTPBackend) {
		b.allowClaim[colour] = true
	}
}

// NewGTPBackend binds a controller to each colour. By default both players
// are asked to score, Black first.
func NewGTPBackend(black, white *gtp.Controller, opts ...BackendOption) *GTPBackend {
	b := &GTPBackend{
		controllers: map[game.Colour]*gtp.Controller{game.Black: black, game.White: white},
		codes:       map[game.Colour]string{game.Black: black.Name, game.White: white.Name},
		startup:     map[game.Colour][][]string{},
		allowClaim:  map[game.Colour]bool{},
		canClaim:    map[game.Colour]bool{},
		scorers:     []game.Colour{game.Black, game.White},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *GTPBackend) StartNewGame(size int, komi float64) error {
	b.size = size
	b.komi = komi
	b.handicap = 0
	for _, colour := range game.Colours {
		c := b.controllers[colour]
		c.SetCautiousMode(false)
		if _, err := c.DoCommand("boardsize", strconv.Itoa(size)); err != nil {
			return err
		}
		if _, err := c.DoCommand("clear_board"); err != nil {
			return err
		}
		// Some engines don't take komi; that's their business.
		if _, err := c.DoCommand("komi", FormatKomi(komi)); err != nil && !isBadResponse(err) {
			return err
		}
		for _, command := range b.startup[colour] {
			if _, err := c.DoCommand(command[0], command[1:]...); err != nil {
				return err
			}
		}
		if b.allowClaim[colour] {
			known, err := c.KnownCommand("gomill-genmove_ex")
			if err != nil {
				return err
			}
			b.canClaim[colour] = known
		}
	}
	return nil
}

func (b *GTPBackend) EndGame() {
	for _, colour := range game.Colours {
		b.controllers[colour].SetCautiousMode(true)
	}
}

func (b *GTPBackend) GetMove(colour game.Colour) (gamemaster.MoveOutcome, error) {
	c := b.controllers[colour]
	var response string
	var err error
	if b.canClaim[colour] {
		response, err = c.DoCommand("gomill-genmove_ex", colour.String(), "claim")
	} else {
		response, err = c.DoCommand("genmove", colour.String())
	}
	if err != nil {
		var bad *gtp.BadResponse
		if errors.As(err, &bad) {
			return gamemaster.Forfeited(bad.Error()), nil
		}
		return gamemaster.MoveOutcome{}, err
	}
	switch strings.ToLower(response) {
	case "resign":
		return gamemaster.Resigned(), nil
	case "claim":
		if b.canClaim[colour] {
			return gamemaster.Claimed(), nil
		}
	}
	move, err := game.ParseVertex(response, b.size)
	if err != nil {
		return gamemaster.Forfeited(fmt.Sprintf("%s attempted ill-formed move %s", b.codes[colour], response)), nil
	}
	return gamemaster.Played(move), nil
}

func (b *GTPBackend) GetLastMoveComment(colour game.Colour) string {
	c := b.controllers[colour]
	known, err := c.KnownCommand("gomill-explain_last_move")
	if err != nil || !known {
		return ""
	}
	comment, err := c.DoCommand("gomill-explain_last_move")
	if err != nil {
		return ""
	}
	return comment
}

func (b *GTPBackend) NotifyMove(colour game.Colour, move game.Move) (gamemaster.NotifyOutcome, error) {
	_, err := b.controllers[colour.Opponent()].DoCommand("play", colour.String(), move.String())
	if err == nil {
		return gamemaster.NotifyOutcome{Status: gamemaster.Accept}, nil
	}
	var bad *gtp.BadResponse
	if !errors.As(err, &bad) {
		return gamemaster.NotifyOutcome{}, err
	}
	if bad.EngineMessage == "illegal move" {
		return gamemaster.NotifyOutcome{Status: gamemaster.Reject, Msg: bad.EngineMessage}, nil
	}
	return gamemaster.NotifyOutcome{Status: gamemaster.NotifyError, Msg: bad.Error()}, nil
}

func (b *GTPBackend) ScoreGame(board *game.Board) (gamemaster.GameScore, error) {
	if b.internalScorer {
		score := game.ScoreBoard(board, b.komi, b.handicap, b.compensation)
		if score.Winner == game.None {
			return gamemaster.GameScore{}, nil
		}
		margin := score.Margin
		return gamemaster.GameScore{Winner: score.Winner, Margin: &margin}, nil
	}

	var scores []gamemaster.GameScore
	for _, colour := range b.scorers {
		response, err := b.controllers[colour].DoCommand("final_score")
		if err != nil {
			continue
		}
		score, ok := ParseScore(response)
		if !ok {
			continue
		}
		scores = append(scores, score)
	}
	if len(scores) == 0 {
		return gamemaster.GameScore{Unknown: true, Detail: "no score reported"}, nil
	}
	agreed := scores[0]
	for _, s := range scores[1:] {
		if s.Winner != agreed.Winner {
			return gamemaster.GameScore{Unknown: true, ScorersDisagreed: true, Detail: "players disagreed"}, nil
		}
		if s.Margin == nil || agreed.Margin == nil || *s.Margin != *agreed.Margin {
			agreed.Margin = nil
		}
	}
	return agreed, nil
}

// ParseScore interprets a final_score response. ok is false if the
// response isn't a score.
func ParseScore(response string) (score gamemaster.GameScore, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(response))
	if s == "0" {
		return gamemaster.GameScore{}, true
	}
	if len(s) < 2 || s[1] != '+' {
		return gamemaster.GameScore{}, false
	}
	var winner game.Colour
	switch s[0] {
	case 'B':
		winner = game.Black
	case 'W':
		winner = game.White
	default:
		return gamemaster.GameScore{}, false
	}
	score = gamemaster.GameScore{Winner: winner}
	if rest := s[2:]; rest != "" {
		margin, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return gamemaster.GameScore{}, false
		}
		if margin > 0 {
			score.Margin = &margin
		}
	}
	return score, true
}

func (b *GTPBackend) GetFreeHandicap(stones int) ([]game.Move, error) {
	response, err := b.controllers[game.Black].DoCommand("place_free_handicap", strconv.Itoa(stones))
	if err != nil {
		return nil, b.handicapError(game.Black, err)
	}
	points, err := b.parsePoints(response)
	if err != nil {
		return nil, &gamemaster.ForfeitError{Colour: game.Black, Reason: fmt.Sprintf(
			"invalid response from place_free_handicap command to %s: %s", b.codes[game.Black], err)}
	}
	b.handicap = len(points)
	return points, nil
}

func (b *GTPBackend) NotifyFreeHandicap(points []game.Move) error {
	vertices := make([]string, len(points))
	for i, p := range points {
		vertices[i] = p.String()
	}
	b.handicap = len(points)
	_, err := b.controllers[game.White].DoCommand("set_free_handicap", vertices...)
	return b.handicapError(game.White, err)
}

func (b *GTPBackend) NotifyFixedHandicap(colour game.Colour, stones int, points []game.Move) error {
	b.handicap = stones
	response, err := b.controllers[colour].DoCommand("fixed_handicap", strconv.Itoa(stones))
	if err != nil {
		return b.handicapError(colour, err)
	}
	got, err := b.parsePoints(response)
	if err != nil || !samePoints(got, points) {
		return &gamemaster.ForfeitError{Colour: colour, Reason: fmt.Sprintf(
			"bad response from fixed_handicap command to %s: %s", b.codes[colour], response)}
	}
	return nil
}

// handicapError turns a failure response into a forfeit; other errors
// are returned unchanged.
func (b *GTPBackend) handicapError(colour game.Colour, err error) error {
	var bad *gtp.BadResponse
	if errors.As(err, &bad) {
		return &gamemaster.ForfeitError{Colour: colour, Reason: bad.Error()}
	}
	return err
}

func (b *GTPBackend) parsePoints(response string) ([]game.Move, error) {
	seen := make(map[game.Move]bool)
	var points []game.Move
	for _, vertex := range strings.Fields(response) {
		p, err := game.ParseVertex(vertex, b.size)
		if err != nil {
			return nil, err
		}
		if p.IsPass() {
			return nil, errors.New("'pass' not permitted")
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate point %s", p)
		}
		seen[p] = true
		points = append(points, p)
	}
	return points, nil
}

func samePoints(a, b []game.Move) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[game.Move]bool, len(a))
	for _, p := range a {
		set[p] = true
	}
	for _, p := range b {
		if !set[p] {
			return false
		}
	}
	return true
}

func isBadResponse(err error) bool {
	var bad *gtp.BadResponse
	return errors.As(err, &bad)
}

// FormatKomi formats komi for GTP and SGF.
func FormatKomi(komi float64) string {
	return gamemaster.FormatMargin(komi)
}
