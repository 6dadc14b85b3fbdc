// Package ringmaster runs a competition described by a control file. Its
// state lives in files named after the control file, so a run can be
// stopped and resumed.
package ringmaster

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"ringmaster/competition"
	"ringmaster/engine"
	"ringmaster/jobs"
	"ringmaster/meta"
	"ringmaster/metrics"
)

// Suffixes added to the control file's path, less its extension.
const (
	statusSuffix  = ".status"
	logSuffix     = ".log"
	histSuffix    = ".hist"
	reportSuffix  = ".report"
	cmdSuffix     = ".cmd"
	lockSuffix    = ".lock"
	gamesSuffix   = ".games"
	voidSuffix    = ".void"
	gtpLogsSuffix = ".gtplogs"
	csvSuffix     = ".games.csv"
)

// Ringmaster runs one competition.
type Ringmaster struct {
	basePath        string
	code            string
	competitionType string
	competition     competition.Competition
	settings        *competition.Settings

	parallel   int
	maxGames   int
	quiet      bool
	logGTP     bool
	logger     zerolog.Logger
	newWorkers jobs.WorkerFactory
	screen     io.Writer

	runID         string
	voidGameCount int
	run           *runState
}

type Option func(*Ringmaster)

// WithParallel sets how many games are played at once.
func WithParallel(n int) Option {
	return func(r *Ringmaster) {
		r.parallel = n
	}
}

// WithMaxGames limits the number of games started by one run. A negative
// value means no limit.
func WithMaxGames(n int) Option {
	return func(r *Ringmaster) {
		r.maxGames = n
	}
}

// WithQuiet turns off the progress display and the screen report.
func WithQuiet(quiet bool) Option {
	return func(r *Ringmaster) {
		r.quiet = quiet
	}
}

// WithLogGTP writes a transcript of every game's GTP traffic.
func WithLogGTP(enabled bool) Option {
	return func(r *Ringmaster) {
		r.logGTP = enabled
	}
}

// WithLogger sets the logger for messages meant for the user's terminal.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Ringmaster) {
		r.logger = logger
	}
}

// WithWorkers runs games in workers from factory instead of in worker
// processes.
func WithWorkers(factory jobs.WorkerFactory) Option {
	return func(r *Ringmaster) {
		r.newWorkers = factory
	}
}

// WithScreen sets where the progress display and screen report go.
func WithScreen(w io.Writer) Option {
	return func(r *Ringmaster) {
		r.screen = w
	}
}

// New reads the control file and prepares its competition. State files
// are named after controlPath with its extension removed.
func New(controlPath string, opts ...Option) (*Ringmaster, error) {
	r := &Ringmaster{
		parallel: meta.DEFAULT_PARALLEL,
		maxGames: -1,
		logger:   zerolog.Nop(),
		screen:   os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallel < 1 {
		return nil, errorf("invalid number of parallel games: %d", r.parallel)
	}
	path, err := filepath.Abs(controlPath)
	if err != nil {
		return nil, errorf("invalid control file path %s: %s", controlPath, err)
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, errorf("control file %s not found", controlPath)
	}
	r.basePath = strings.TrimSuffix(path, filepath.Ext(path))
	r.code = filepath.Base(r.basePath)

	c, err := competition.Load(path, r.code)
	if err != nil {
		return nil, err
	}
	r.competition = c
	r.settings = c.Settings()
	r.competitionType = r.settings.Type
	return r, nil
}

func (r *Ringmaster) path(suffix string) string {
	return r.basePath + suffix
}

// Competition returns the competition being run.
func (r *Ringmaster) Competition() competition.Competition { return r.competition }

// VoidGameCount is the number of games that failed without a result, over
// all runs.
func (r *Ringmaster) VoidGameCount() int { return r.voidGameCount }

// runState is what a single run keeps track of.
type runState struct {
	log          zerolog.Logger
	gamesStarted int
	stopReason   string
	// retries counts failures by game id.
	retries map[string]int
	// replay holds failed games waiting to be played again.
	replay    []*engine.GameJob
	records   *metrics.Writer
	collector metrics.Collector
	progress  progress
}
