package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ringmaster/game"
	"ringmaster/gamemaster"
	"ringmaster/gtp"
	"ringmaster/jobs"
	"ringmaster/player"
)

// JobKind is the registry name of GameJob.
const JobKind = "game"

func init() {
	jobs.Register(JobKind, func() jobs.Job { return &GameJob{} }, func() any { return &GameJobResult{} })
}

// GameJob is a request to play one game between two engines.
type GameJob struct {
	GameID    string                         `json:"game_id"`
	Players   map[game.Colour]*player.Player `json:"players"`
	BoardSize int                            `json:"board_size"`
	Komi      float64                        `json:"komi"`
	MoveLimit int                            `json:"move_limit"`

	UseInternalScorer    bool                      `json:"use_internal_scorer"`
	HandicapCompensation game.HandicapCompensation `json:"handicap_compensation"`
	// PreferredScorers are player codes; the first of them playing in
	// this game who is a reliable scorer is the only one asked.
	PreferredScorers []string `json:"preferred_scorers,omitempty"`

	Handicap       int  `json:"handicap,omitempty"`
	HandicapIsFree bool `json:"handicap_is_free,omitempty"`

	SgfFilename     string `json:"sgf_filename,omitempty"`
	VoidSgfFilename string `json:"void_sgf_filename,omitempty"`
	GtpLogFilename  string `json:"gtp_log_filename,omitempty"`
	SgfEvent        string `json:"sgf_event,omitempty"`
	SgfRound        string `json:"sgf_round,omitempty"`

	// GameData is returned unchanged in the result.
	GameData json.RawMessage `json:"game_data,omitempty"`
}

func (j *GameJob) Kind() string { return JobKind }

type CPUTimeSource string

const (
	CPUTimeGTP    CPUTimeSource = "gtp"
	CPUTimeRusage CPUTimeSource = "rusage"
	CPUTimeError  CPUTimeSource = "error"
	CPUTimeNone   CPUTimeSource = "none"
)

// CPUTime records an engine's CPU time and where the figure came from.
type CPUTime struct {
	Seconds float64       `json:"seconds"`
	Source  CPUTimeSource `json:"source"`
}

// Known reports whether Seconds is meaningful.
func (t CPUTime) Known() bool {
	return t.Source == CPUTimeGTP || t.Source == CPUTimeRusage
}

// GameJobResult is the response to a GameJob.
type GameJobResult struct {
	GameID             string                 `json:"game_id"`
	Result             *gamemaster.Result     `json:"result"`
	EngineNames        map[game.Colour]string `json:"engine_names"`
	EngineDescriptions map[game.Colour]string `json:"engine_descriptions"`
	CPUTimes           map[string]CPUTime     `json:"cpu_times"`
	Warnings           []string               `json:"warnings,omitempty"`
	LogEntries         []string               `json:"log_entries,omitempty"`
	Moves              int                    `json:"moves"`
	StartTime          time.Time              `json:"start_time"`
	EndTime            time.Time              `json:"end_time"`
	GameData           json.RawMessage        `json:"game_data,omitempty"`
}

// startChannel starts an engine for a player.
var startChannel = func(p *player.Player, stderr io.Writer) (gtp.Channel, error) {
	return gtp.NewSubprocessChannel(gtp.ProcessConfig{
		Command: p.Command,
		Dir:     p.Dir,
		Env:     p.Environ(),
		Stderr:  stderr,
	})
}

// Run plays the game. Failures that leave no result are returned as
// *jobs.JobFailed.
func (j *GameJob) Run(ctx context.Context) (any, error) {
	r := &gameRun{
		job:                j,
		controllers:        map[game.Colour]*gtp.Controller{},
		engineNames:        map[game.Colour]string{},
		engineDescriptions: map[game.Colour]string{},
		transcript:         zerolog.Nop(),
	}
	response, err := r.run()
	if err != nil {
		msg := fmt.Sprintf("aborting game due to error:\n%s", err)
		r.writeVoidSGF(msg)
		return nil, &jobs.JobFailed{Msg: msg}
	}
	return response, nil
}

type gameRun struct {
	job                *GameJob
	controllers        map[game.Colour]*gtp.Controller
	runner             *gamemaster.Runner
	transcript         zerolog.Logger
	files              []*os.File
	engineNames        map[game.Colour]string
	engineDescriptions map[game.Colour]string
	warnings           []string
	logEntries         []string
	start              time.Time
}

func (r *gameRun) run() (*GameJobResult, error) {
	defer r.closeFiles()
	r.start = time.Now()
	if err := r.openTranscript(); err != nil {
		return nil, err
	}
	var err error
	for _, colour := range game.Colours {
		if err = r.startPlayer(colour); err != nil {
			break
		}
	}
	if err == nil {
		err = r.playGame()
	}
	cpuTimes := r.closePlayers(err == nil)
	if err != nil {
		return nil, err
	}

	result := r.runner.Result()
	result.GameID = r.job.GameID
	result.CPUTimes = make(map[string]*float64)
	for code, t := range cpuTimes {
		if t.Known() {
			seconds := t.Seconds
			result.CPUTimes[code] = &seconds
		} else {
			result.CPUTimes[code] = nil
		}
	}
	response := &GameJobResult{
		GameID:             r.job.GameID,
		Result:             result,
		EngineNames:        r.engineNames,
		EngineDescriptions: r.engineDescriptions,
		CPUTimes:           cpuTimes,
		Moves:              len(r.runner.Moves()),
		StartTime:          r.start,
		EndTime:            time.Now(),
		GameData:           r.job.GameData,
	}
	if r.job.SgfFilename != "" {
		if err := r.writeSGF(r.job.SgfFilename, result.Describe()); err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("error writing sgf file: %s", err))
		}
	}
	response.Warnings = r.warnings
	response.LogEntries = r.logEntries
	return response, nil
}

func (r *gameRun) openTranscript() error {
	if r.job.GtpLogFilename == "" {
		return nil
	}
	f, err := createFile(r.job.GtpLogFilename, os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("can't open gtp log: %w", err)
	}
	r.files = append(r.files, f)
	r.transcript = zerolog.New(zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    true,
		TimeFormat: time.RFC3339Nano,
	}).With().Timestamp().Str("game", r.job.GameID).Logger()
	return nil
}

func createFile(path string, flag int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|flag, 0o644)
}

func (r *gameRun) stderrFor(p *player.Player) (io.Writer, error) {
	switch p.Stderr {
	case player.StderrInherit:
		return os.Stderr, nil
	case player.StderrDiscard:
		return nil, nil
	}
	if p.StderrPath == "" {
		return os.Stderr, nil
	}
	f, err := createFile(p.StderrPath, os.O_APPEND)
	if err != nil {
		return nil, err
	}
	r.files = append(r.files, f)
	return f, nil
}

func (r *gameRun) startPlayer(colour game.Colour) error {
	p := r.job.Players[colour]
	if p == nil {
		return fmt.Errorf("no player for %s", colour.Name())
	}
	stderr, err := r.stderrFor(p)
	if err != nil {
		return fmt.Errorf("can't open stderr log for player %s: %w", p.Code, err)
	}
	ch, err := startChannel(p, stderr)
	if err != nil {
		return fmt.Errorf("error starting subprocess for player %s:\n%w", p.Code, err)
	}
	c := gtp.NewController(ch, p.Code,
		gtp.WithTranslations(p.Translations),
		gtp.WithTranscript(r.transcript))
	r.controllers[colour] = c

	if err := c.CheckProtocolVersion(); err != nil {
		return err
	}
	r.engineNames[colour], r.engineDescriptions[colour], err = describeEngine(c)
	return err
}

// describeEngine asks for the engine's name, version and description.
// Engines that refuse these commands are not at fault.
func describeEngine(c *gtp.Controller) (name, description string, err error) {
	name, err = c.DoCommand("name")
	if isBadResponse(err) {
		name, err = c.Name, nil
	}
	if err != nil {
		return "", "", err
	}
	version, err := c.DoCommand("version")
	if err != nil && !isBadResponse(err) {
		return "", "", err
	}
	if version != "" {
		name = name + ":" + version
	}
	description = name
	known, err := c.KnownCommand("gomill-describe_engine")
	if err != nil {
		return "", "", err
	}
	if known {
		d, err := c.DoCommand("gomill-describe_engine")
		if err != nil && !isBadResponse(err) {
			return "", "", err
		}
		if d != "" {
			description = d
		}
	}
	return name, description, nil
}

func (r *gameRun) scorers() []game.Colour {
	reliable := func(colour game.Colour) bool {
		return r.job.Players[colour].IsReliableScorer
	}
	for _, code := range r.job.PreferredScorers {
		for _, colour := range game.Colours {
			if r.job.Players[colour].Code == code && reliable(colour) {
				return []game.Colour{colour}
			}
		}
	}
	var scorers []game.Colour
	for _, colour := range game.Colours {
		if reliable(colour) {
			scorers = append(scorers, colour)
		}
	}
	return scorers
}

func (r *gameRun) playGame() error {
	j := r.job
	opts := []BackendOption{WithScorers(r.scorers()...)}
	if j.UseInternalScorer {
		opts = append(opts, WithInternalScorer(j.HandicapCompensation))
	}
	for _, colour := range game.Colours {
		p := j.Players[colour]
		opts = append(opts, WithStartupCommands(colour, p.StartupCommands))
		if p.AllowClaim {
			opts = append(opts, WithAllowClaim(colour))
		}
	}
	backend := NewGTPBackend(r.controllers[game.Black], r.controllers[game.White], opts...)
	r.runner = gamemaster.NewRunner(backend, j.BoardSize, j.Komi, j.MoveLimit,
		gamemaster.WithPlayers(j.Players[game.Black].Code, j.Players[game.White].Code))
	if err := r.runner.Prepare(); err != nil {
		return err
	}
	if j.Handicap > 0 {
		if err := r.runner.SetHandicap(j.Handicap, j.HandicapIsFree); err != nil {
			return err
		}
	}
	return r.runner.Run()
}

// closePlayers shuts the engines down and works out their CPU times. Late
// errors become warnings if the game produced a result.
func (r *gameRun) closePlayers(ok bool) map[string]CPUTime {
	times := make(map[string]CPUTime)
	for _, colour := range game.Colours {
		c := r.controllers[colour]
		if c == nil {
			continue
		}
		t := CPUTime{Source: CPUTimeNone}
		if ok && !c.ChannelIsBad() {
			seconds, err := c.CPUTime()
			switch {
			case err == nil:
				t = CPUTime{Seconds: seconds, Source: CPUTimeGTP}
			case errors.Is(err, gtp.ErrNoCPUTime):
			default:
				t.Source = CPUTimeError
				r.logEntries = append(r.logEntries, fmt.Sprintf("error getting cpu time for %s: %s", c.Name, err))
			}
		}
		c.Close()
		if t.Source != CPUTimeGTP {
			if usage := c.ResourceUsage(); usage != nil {
				t = CPUTime{Seconds: usage.CPUSeconds(), Source: CPUTimeRusage}
			}
		}
		times[c.Name] = t
		if ok {
			r.warnings = append(r.warnings, c.LateErrors()...)
		}
	}
	return times
}

func (r *gameRun) closeFiles() {
	for _, f := range r.files {
		f.Close()
	}
	r.files = nil
}

func (r *gameRun) rootComment(extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game id %s\n", r.job.GameID)
	fmt.Fprintf(&b, "Date %s\n", r.start.Format("2006-01-02 15:04:05"))
	if extra != "" {
		fmt.Fprintf(&b, "%s\n", extra)
	}
	for _, colour := range game.Colours {
		p := r.job.Players[colour]
		if p == nil {
			continue
		}
		fmt.Fprintf(&b, "%s %s", colour.Name(), p.Code)
		if d := r.engineDescriptions[colour]; d != "" {
			fmt.Fprintf(&b, " %s", d)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *gameRun) writeSGF(path, extra string) error {
	root := r.runner.MakeSGF()
	root.SetValue("C", r.rootComment(extra))
	if r.job.SgfEvent != "" {
		root.SetValue("EV", r.job.SgfEvent)
	}
	if r.job.SgfRound != "" {
		root.SetValue("RO", r.job.SgfRound)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return root.Save(path)
}

// writeVoidSGF records a partial game that failed. Errors are ignored:
// the failure itself is what gets reported.
func (r *gameRun) writeVoidSGF(msg string) {
	if r.job.VoidSgfFilename == "" || r.runner == nil {
		return
	}
	_ = r.writeSGF(r.job.VoidSgfFilename, msg)
}
