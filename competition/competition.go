// Package competition defines the kinds of competition the ringmaster can
// run: playoffs, all-play-all tournaments, and two parameter tuners.
package competition

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"ringmaster/engine"
	"ringmaster/game"
	"ringmaster/player"
	"ringmaster/utils"
)

// Competition is the interface the ringmaster drives.
type Competition interface {
	// Initialise reads the control file settings. baseDir is the control
	// file's directory.
	Initialise(cf *ControlFile, baseDir string) error
	SetCleanStatus() error
	Status() (any, error)
	SetStatus(data json.RawMessage) error

	// GetGame returns the next game to play, or ErrNoGameAvailable.
	GetGame() (*engine.GameJob, error)
	ProcessGameResult(response *engine.GameJobResult) error
	// ProcessGameError decides what happens after a game failed without
	// a result. previousErrorCount is how many times this game id has
	// failed before.
	ProcessGameError(job *engine.GameJob, previousErrorCount int) (stopCompetition, retryGame bool)

	WriteScreenReport(w io.Writer)
	WriteShortReport(w io.Writer)
	WriteFullReport(w io.Writer)

	// Players returns every player the competition may run.
	Players() []*player.Player
	// PlayerChecks lists the engines "ringmaster check" should start.
	PlayerChecks() ([]PlayerCheck, error)
	SetHistoryLogger(logger zerolog.Logger)
	Settings() *Settings
}

// Settings are the control file settings the ringmaster itself uses.
type Settings struct {
	// Type is the control file's competition_type.
	Type         string
	Description  string
	RecordGames  bool
	StderrToLog  bool
	GtpLog       bool
	MaxVoidGames *int
}

// New returns an uninitialised competition of the given type. code names
// the competition and is used as the SGF event.
func New(competitionType, code string) (Competition, error) {
	switch competitionType {
	case "playoff":
		return NewPlayoff(code), nil
	case "allplayall":
		return NewAllPlayAll(code), nil
	case "ce_tuner":
		return NewCETuner(code), nil
	case "mcts_tuner":
		return NewMCTSTuner(code), nil
	case "":
		return nil, controlFileErrorf("competition_type not specified")
	}
	return nil, controlFileErrorf("unknown competition type: %s", competitionType)
}

// Load reads a control file and returns the initialised competition.
func Load(path, code string) (Competition, error) {
	cf, err := LoadControlFile(path)
	if err != nil {
		return nil, err
	}
	c, err := New(cf.CompetitionType, code)
	if err != nil {
		return nil, err
	}
	if err := c.Initialise(cf, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return c, nil
}

// base holds what every competition has in common.
type base struct {
	code     string
	settings Settings
	players  map[string]*player.Player
	history  zerolog.Logger
	// engineDescriptions maps player code to the engine's own description.
	engineDescriptions map[string]string
}

func newBase(code string) base {
	return base{
		code:               code,
		history:            zerolog.Nop(),
		engineDescriptions: make(map[string]string),
	}
}

func (b *base) initialise(cf *ControlFile, baseDir string) error {
	b.settings = Settings{
		Type:         cf.CompetitionType,
		Description:  strings.TrimSpace(cf.Description),
		RecordGames:  true,
		StderrToLog:  true,
		GtpLog:       cf.GtpLog,
		MaxVoidGames: cf.MaxVoidGames,
	}
	if cf.RecordGames != nil {
		b.settings.RecordGames = *cf.RecordGames
	}
	if cf.StderrToLog != nil {
		b.settings.StderrToLog = *cf.StderrToLog
	}
	if cf.MaxVoidGames != nil && *cf.MaxVoidGames < 0 {
		return controlFileErrorf("max_void_games: must not be negative")
	}
	b.players = make(map[string]*player.Player)
	for _, code := range utils.SortedKeys(cf.Players) {
		p, err := parsePlayer(code, cf.Players[code], baseDir, b.settings.StderrToLog)
		if err != nil {
			return inSetting("players", err)
		}
		b.players[code] = p
	}
	return nil
}

func (b *base) Settings() *Settings { return &b.settings }

func (b *base) SetHistoryLogger(logger zerolog.Logger) { b.history = logger }

func (b *base) Players() []*player.Player {
	players := make([]*player.Player, 0, len(b.players))
	for _, code := range utils.SortedKeys(b.players) {
		players = append(players, b.players[code])
	}
	return players
}

func (b *base) player(code string) (*player.Player, error) {
	p, ok := b.players[code]
	if !ok {
		return nil, controlFileErrorf("unknown player %s", code)
	}
	return p, nil
}

// ProcessGameError retries a game once, and stops the competition if the
// same game fails again.
func (b *base) ProcessGameError(job *engine.GameJob, previousErrorCount int) (bool, bool) {
	if previousErrorCount == 0 {
		return false, true
	}
	return true, false
}

func (b *base) recordEngineDescriptions(response *engine.GameJobResult) {
	for colour, d := range response.EngineDescriptions {
		if code := response.Result.Player(colour); code != "" && d != "" {
			b.engineDescriptions[code] = d
		}
	}
}

// newJob fills in the settings shared by every game.
func (b *base) newJob(id string, black, white *player.Player, c GameConfig, data any) (*engine.GameJob, error) {
	gameData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding game data: %w", err)
	}
	return &engine.GameJob{
		GameID: id,
		Players: map[game.Colour]*player.Player{
			game.Black: black.Copy(),
			game.White: white.Copy(),
		},
		BoardSize:            c.BoardSize,
		Komi:                 c.Komi,
		MoveLimit:            c.MoveLimit,
		UseInternalScorer:    c.UseInternalScorer,
		HandicapCompensation: c.HandicapCompensation,
		PreferredScorers:     c.PreferredScorers,
		Handicap:             c.Handicap,
		HandicapIsFree:       c.HandicapIsFree,
		SgfEvent:             b.code,
		SgfRound:             id,
		GameData:             gameData,
	}, nil
}

func (b *base) writeDescription(w io.Writer) {
	if b.settings.Description != "" {
		fmt.Fprintln(w, b.settings.Description)
	}
}

func (b *base) writeEngineDescriptions(w io.Writer) {
	for _, code := range utils.SortedKeys(b.engineDescriptions) {
		fmt.Fprintf(w, "player %s: %s\n", code, b.engineDescriptions[code])
	}
}

// checkStatusVersion checks the version field every competition status has.
func checkStatusVersion(data json.RawMessage, want int) error {
	var v struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid competition status: %w", err)
	}
	if v.Version != want {
		return fmt.Errorf("incompatible competition status version %d (expected %d)", v.Version, want)
	}
	return nil
}
