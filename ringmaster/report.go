package ringmaster

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// progress shows the number of games finished in this run.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, description string, maxGames int, quiet bool) progress {
	return progress{bar: progressbar.NewOptions(maxGames,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!quiet),
		progressbar.OptionClearOnFinish(),
	)}
}

func (p progress) add() {
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

// writeSummary writes the lines the ringmaster adds above a competition's
// own report.
func (r *Ringmaster) writeSummary(w io.Writer) {
	if r.voidGameCount > 0 {
		fmt.Fprintf(w, "%d void games; see log file.\n", r.voidGameCount)
	}
	if r.run != nil && r.run.stopReason != "" {
		fmt.Fprintf(w, "run stopped: %s\n", r.run.stopReason)
	}
}

func (r *Ringmaster) writeScreenReport() {
	fmt.Fprintf(r.screen, "%s\n", r.code)
	r.writeSummary(r.screen)
	r.competition.WriteScreenReport(r.screen)
}

func (r *Ringmaster) writeReportFile() error {
	f, err := os.Create(r.path(reportSuffix))
	if err != nil {
		return err
	}
	defer f.Close()
	r.writeSummary(f)
	r.competition.WriteFullReport(f)
	return nil
}

// loadForReport reads the status of a competition that has been run.
func (r *Ringmaster) loadForReport() error {
	if !r.statusExists() {
		return errorf("no status file for %s; the competition hasn't been run", r.code)
	}
	return r.loadStatus()
}

// Show writes the short report to w.
func (r *Ringmaster) Show(w io.Writer) error {
	if err := r.loadForReport(); err != nil {
		return err
	}
	r.writeSummary(w)
	r.competition.WriteShortReport(w)
	return nil
}

// Report rewrites the .report file.
func (r *Ringmaster) Report() error {
	if err := r.loadForReport(); err != nil {
		return err
	}
	return errors.Wrap(r.writeReportFile(), "can't write report")
}

// Stop asks a running ringmaster to finish its current games and exit.
func (r *Ringmaster) Stop() error {
	return errors.Wrap(os.WriteFile(r.path(cmdSuffix), []byte("stop\n"), 0o644), "can't write command file")
}

// Reset removes every file and directory the ringmaster has written for
// this competition.
func (r *Ringmaster) Reset() error {
	lock, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer lock.Unlock()
	for _, suffix := range []string{
		statusSuffix, statusSuffix + ".new", logSuffix, histSuffix,
		reportSuffix, cmdSuffix, csvSuffix,
	} {
		if err := os.Remove(r.path(suffix)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "can't remove %s file", suffix)
		}
	}
	for _, suffix := range []string{gamesSuffix, voidSuffix, gtpLogsSuffix} {
		if err := os.RemoveAll(r.path(suffix)); err != nil {
			return errors.Wrapf(err, "can't remove %s directory", suffix)
		}
	}
	return nil
}
