// Package jobs runs jobs from a Source, in this process or in a pool of
// worker processes.
package jobs

import (
	"context"
	"errors"
	"fmt"
)

// Job is a self-contained unit of work. Jobs that are run by worker
// processes must survive a JSON round trip.
type Job interface {
	// Kind names the job type in the registry.
	Kind() string
	// Run performs the job. It returns *JobFailed for failures the
	// source should hear about; other errors stop the run.
	Run(ctx context.Context) (any, error)
}

// Source supplies jobs and receives their responses.
type Source interface {
	// GetJob returns the next job, or ErrNoJobAvailable.
	GetJob() (Job, error)
	ProcessResponse(response any) error
	ProcessErrorResponse(job Job, msg string) error
}

// Manager runs jobs from a source until it has none left.
//
// Cancelling ctx stops new jobs from being started; jobs already running
// are allowed to finish and their responses are processed. Run then
// returns ctx.Err().
type Manager interface {
	Run(ctx context.Context, source Source) error
}

// ErrNoJobAvailable is returned by Source.GetJob when there is nothing to
// do right now. If no jobs are in flight, the manager stops.
var ErrNoJobAvailable = errors.New("no job available")

// JobFailed is a job failure that is reported to the source rather than
// stopping the run.
type JobFailed struct {
	Msg string
}

func (e *JobFailed) Error() string { return e.Msg }

// JobSourceError is an error in the source itself. It stops the run.
type JobSourceError struct {
	Err error
}

func (e *JobSourceError) Error() string {
	return fmt.Sprintf("error from job source: %s", e.Err)
}

func (e *JobSourceError) Unwrap() error { return e.Err }

func sourceError(err error) error {
	var jse *JobSourceError
	if errors.As(err, &jse) {
		return err
	}
	return &JobSourceError{Err: err}
}

// getJob asks the source for a job; ok is false if none is available.
func getJob(source Source) (job Job, ok bool, err error) {
	job, err = source.GetJob()
	if errors.Is(err, ErrNoJobAvailable) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sourceError(err)
	}
	if job == nil {
		return nil, false, nil
	}
	return job, true, nil
}
