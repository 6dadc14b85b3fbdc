package jobs

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// InProcess runs one job at a time in the calling goroutine.
type InProcess struct {
	logger zerolog.Logger
}

type Option func(*options)

type options struct {
	logger        zerolog.Logger
	workerCommand []string
	newWorker     WorkerFactory
}

// WithLogger sets the logger for manager events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func NewInProcess(opts ...Option) *InProcess {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &InProcess{logger: o.logger}
}

func (m *InProcess) Run(ctx context.Context, source Source) error {
	jobCtx := context.WithoutCancel(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, ok, err := getJob(source)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		response, err := job.Run(jobCtx)
		var failed *JobFailed
		switch {
		case errors.As(err, &failed):
			m.logger.Debug().Str("kind", job.Kind()).Msg("job failed")
			if err := source.ProcessErrorResponse(job, failed.Msg); err != nil {
				return sourceError(err)
			}
		case err != nil:
			return err
		default:
			if err := source.ProcessResponse(response); err != nil {
				return sourceError(err)
			}
		}
	}
}
