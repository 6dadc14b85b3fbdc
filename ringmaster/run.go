package ringmaster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"ringmaster/competition"
	"ringmaster/engine"
	"ringmaster/game"
	"ringmaster/jobs"
	"ringmaster/metrics"
	"ringmaster/player"
)

// acquireLock makes sure only one run uses the state files at a time.
func (r *Ringmaster) acquireLock() (lockfile.Lockfile, error) {
	lock, err := lockfile.New(r.path(lockSuffix))
	if err != nil {
		return lock, errors.Wrap(err, "can't create lock file")
	}
	err = lock.TryLock()
	if err == lockfile.ErrBusy {
		return lock, errorf("ringmaster is already running on %s", r.code)
	}
	if err != nil {
		return lock, errors.Wrap(err, "can't lock state files")
	}
	return lock, nil
}

// openFileLogger returns a logger appending human-readable lines to path.
func openFileLogger(path string) (zerolog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    true,
		TimeFormat: time.DateTime,
	}).With().Timestamp().Logger()
	return logger, f, nil
}

// Run plays games until the competition has none left, the game limit for
// this run is reached, or a stop is requested with the .cmd file.
//
// Cancelling ctx stops new games from starting. Games already running are
// finished and recorded, and Run returns ctx.Err().
func (r *Ringmaster) Run(ctx context.Context) error {
	lock, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	log, logFile, err := openFileLogger(r.path(logSuffix))
	if err != nil {
		return errors.Wrap(err, "can't open log file")
	}
	defer logFile.Close()
	hist, histFile, err := openFileLogger(r.path(histSuffix))
	if err != nil {
		return errors.Wrap(err, "can't open history file")
	}
	defer histFile.Close()
	r.competition.SetHistoryLogger(hist)

	if err := os.Remove(r.path(cmdSuffix)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "can't remove command file")
	}
	if err := r.loadOrInitialise(); err != nil {
		return err
	}
	for _, suffix := range []string{gamesSuffix, voidSuffix, gtpLogsSuffix} {
		if err := os.MkdirAll(r.path(suffix), 0o755); err != nil {
			return errors.Wrap(err, "can't create directory")
		}
	}

	r.runID = uuid.NewString()
	r.run = &runState{
		log:       log.With().Str("run", r.runID).Logger(),
		retries:   make(map[string]int),
		records:   metrics.NewWriter(r.path(csvSuffix)),
		collector: metrics.NewCollector(),
	}
	defer func() { r.run = nil }()
	run := r.run
	run.collector.Start()
	run.log.Info().
		Str("competition", r.code).
		Str("type", r.competitionType).
		Int("parallel", r.parallel).
		Msg("run started")

	manager, err := r.newManager(ctx)
	if err != nil {
		return err
	}
	run.progress = newProgress(r.screen, r.code, r.maxGames, r.quiet)
	runErr := manager.Run(ctx, r)
	run.progress.finish()

	if err := r.writeStatus(); err != nil {
		run.log.Error().Err(err).Msg("can't write status")
		if runErr == nil {
			runErr = err
		}
	}
	if err := r.writeReportFile(); err != nil {
		run.log.Error().Err(err).Msg("can't write report")
	}
	if !r.quiet {
		r.writeScreenReport()
	}

	m := run.collector.Complete()
	ev := run.log.Info()
	switch {
	case errors.Is(runErr, context.Canceled):
		ev = run.log.Warn().Str("reason", "interrupted")
	case runErr != nil:
		ev = run.log.Error().Err(runErr)
	case run.stopReason != "":
		ev = ev.Str("reason", run.stopReason)
	}
	ev.Int("started", m.Started).
		Int("completed", m.Completed).
		Int("void", m.Void).
		Dur("duration", m.Duration).
		Msg("run finished")
	return runErr
}

func (r *Ringmaster) newManager(ctx context.Context) (jobs.Manager, error) {
	opts := []jobs.Option{jobs.WithLogger(r.run.log)}
	if r.newWorkers != nil {
		return jobs.NewMultiprocess(r.parallel, append(opts, jobs.WithWorkers(r.newWorkers))...)
	}
	if r.parallel == 1 {
		return jobs.NewInProcess(opts...), nil
	}
	return jobs.NewMultiprocess(r.parallel, opts...)
}

// stop ends the run once the games in progress have finished.
func (r *Ringmaster) stop(reason string) {
	if r.run.stopReason != "" {
		return
	}
	r.run.stopReason = reason
	r.run.log.Info().Msgf("halting competition: %s", reason)
	r.logger.Info().Msgf("halting competition: %s", reason)
}

// checkCommandFile reads and removes the .cmd file.
func (r *Ringmaster) checkCommandFile() {
	data, err := os.ReadFile(r.path(cmdSuffix))
	if err != nil {
		return
	}
	os.Remove(r.path(cmdSuffix))
	switch command := strings.TrimSpace(string(data)); command {
	case "stop":
		r.stop("stop command received")
	default:
		r.run.log.Warn().Msgf("ignoring unknown command %q", command)
	}
}

// GetJob returns the next game, replaying failed games first.
func (r *Ringmaster) GetJob() (jobs.Job, error) {
	run := r.run
	r.checkCommandFile()
	if run.stopReason == "" && r.maxGames >= 0 && run.gamesStarted >= r.maxGames {
		r.stop(fmt.Sprintf("max games for this run (%d) reached", r.maxGames))
	}
	if run.stopReason != "" {
		return nil, jobs.ErrNoJobAvailable
	}

	var job *engine.GameJob
	if len(run.replay) > 0 {
		job = run.replay[0]
		run.replay = run.replay[1:]
		run.log.Info().Str("game", job.GameID).Msg("retrying game")
	} else {
		var err error
		job, err = r.competition.GetGame()
		if errors.Is(err, competition.ErrNoGameAvailable) {
			return nil, jobs.ErrNoJobAvailable
		}
		if err != nil {
			return nil, err
		}
		r.prepareJob(job)
	}
	run.gamesStarted++
	run.collector.AddStarted()
	run.log.Info().
		Str("game", job.GameID).
		Str("black", job.Players[game.Black].Code).
		Str("white", job.Players[game.White].Code).
		Msg("starting game")
	return job, nil
}

// prepareJob fills in the per-game file names.
func (r *Ringmaster) prepareJob(job *engine.GameJob) {
	if r.settings.RecordGames {
		job.SgfFilename = r.gamePath(gamesSuffix, job.GameID, ".sgf")
		job.VoidSgfFilename = r.gamePath(voidSuffix, job.GameID, ".sgf")
	}
	if r.logGTP || r.settings.GtpLog {
		job.GtpLogFilename = r.gamePath(gtpLogsSuffix, job.GameID, ".log")
	}
	for _, p := range job.Players {
		if p.Stderr == player.StderrLog {
			p.StderrPath = r.path(logSuffix)
		}
	}
}

func (r *Ringmaster) gamePath(dirSuffix, gameID, ext string) string {
	return filepath.Join(r.path(dirSuffix), gameID+ext)
}

// ProcessResponse records a finished game.
func (r *Ringmaster) ProcessResponse(response any) error {
	run := r.run
	res, ok := response.(*engine.GameJobResult)
	if !ok {
		return fmt.Errorf("unexpected response type %T", response)
	}
	for _, entry := range res.LogEntries {
		run.log.Info().Str("game", res.GameID).Msg(entry)
	}
	for _, warning := range res.Warnings {
		run.log.Warn().Str("game", res.GameID).Msg(warning)
		r.logger.Warn().Str("game", res.GameID).Msg(warning)
	}
	if err := r.competition.ProcessGameResult(res); err != nil {
		return err
	}
	run.collector.AddCompleted()
	run.progress.add()
	run.log.Info().Str("game", res.GameID).Msg(res.Result.Describe())

	err := run.records.WriteGameRecord(metrics.GameRecord{
		ID:        res.GameID,
		Black:     res.Result.Player(game.Black),
		White:     res.Result.Player(game.White),
		Result:    res.Result.SgfResult,
		Winner:    res.Result.WinningPlayer(),
		Moves:     res.Moves,
		StartTime: res.StartTime,
		EndTime:   res.EndTime,
	})
	if err != nil {
		run.log.Warn().Err(err).Msg("can't write game record")
	}
	return r.writeStatus()
}

// ProcessErrorResponse records a game that failed without a result and
// decides whether to play it again.
func (r *Ringmaster) ProcessErrorResponse(job jobs.Job, msg string) error {
	run := r.run
	gameJob, ok := job.(*engine.GameJob)
	if !ok {
		return fmt.Errorf("unexpected job type %T", job)
	}
	r.voidGameCount++
	run.collector.AddVoid()
	run.log.Warn().Str("game", gameJob.GameID).Msgf("game void: %s", msg)
	r.logger.Warn().Str("game", gameJob.GameID).Msg("game void; see log file")

	previous := run.retries[gameJob.GameID]
	run.retries[gameJob.GameID]++
	stopCompetition, retry := r.competition.ProcessGameError(gameJob, previous)
	if retry {
		run.replay = append(run.replay, gameJob)
	}
	switch {
	case stopCompetition:
		r.stop(fmt.Sprintf("game %s failed %d times", gameJob.GameID, previous+1))
	case r.settings.MaxVoidGames != nil && r.voidGameCount >= *r.settings.MaxVoidGames:
		r.stop(fmt.Sprintf("too many void games (%d)", r.voidGameCount))
	}
	return r.writeStatus()
}
