package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ringmaster/communication"
)

// Multiprocess runs up to a fixed number of jobs at once, each in a
// separate worker.
type Multiprocess struct {
	parallel  int
	logger    zerolog.Logger
	newWorker WorkerFactory
}

// WithWorkerCommand runs workers as processes with the given command line.
func WithWorkerCommand(command ...string) Option {
	return func(o *options) {
		o.workerCommand = command
	}
}

// WithWorkers sets how workers are started.
func WithWorkers(factory WorkerFactory) Option {
	return func(o *options) {
		o.newWorker = factory
	}
}

// NewMultiprocess returns a manager with the given number of workers. By
// default workers are started by re-running this executable with the
// single argument "worker".
func NewMultiprocess(parallel int, opts ...Option) (*Multiprocess, error) {
	if parallel < 1 {
		return nil, fmt.Errorf("invalid number of workers: %d", parallel)
	}
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.newWorker == nil {
		command := o.workerCommand
		if command == nil {
			exe, err := os.Executable()
			if err != nil {
				return nil, err
			}
			command = []string{exe, "worker"}
		}
		o.newWorker = SpawnWorkers(command)
	}
	return &Multiprocess{parallel: parallel, logger: o.logger, newWorker: o.newWorker}, nil
}

type reply struct {
	worker int
	msg    *communication.Message
	err    error
}

func (m *Multiprocess) Run(ctx context.Context, source Source) error {
	workers := make([]communication.Communicator, 0, m.parallel)
	for i := 0; i < m.parallel; i++ {
		w, err := m.newWorker(i)
		if err != nil {
			closeAll(workers)
			return err
		}
		workers = append(workers, w)
	}

	replies := make(chan reply)
	done := make(chan struct{})
	g := new(errgroup.Group)
	for i, w := range workers {
		i, w := i, w
		g.Go(func() error {
			for {
				msg, err := w.Receive()
				select {
				case replies <- reply{worker: i, msg: msg, err: err}:
				case <-done:
					return nil
				}
				if err != nil {
					return nil
				}
			}
		})
	}

	d := &driver{
		source:   source,
		workers:  workers,
		inFlight: make(map[uint64]Job),
		assigned: make(map[int]uint64),
		logger:   m.logger,
	}
	for i := len(workers) - 1; i >= 0; i-- {
		d.idle = append(d.idle, i)
	}
	err := d.run(ctx, replies)

	close(done)
	for _, w := range workers {
		if cerr := w.Close(); cerr != nil {
			m.logger.Debug().Err(cerr).Msg("error closing worker")
		}
	}
	g.Wait()
	return err
}

func closeAll(workers []communication.Communicator) {
	for _, w := range workers {
		w.Close()
	}
}

type driver struct {
	source   Source
	workers  []communication.Communicator
	idle     []int
	inFlight map[uint64]Job
	assigned map[int]uint64
	nextSeq  uint64
	stopping bool
	logger   zerolog.Logger
}

func (d *driver) run(ctx context.Context, replies <-chan reply) error {
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
		d.stopping = true
	}
	ctxDone := ctx.Done()
	for {
		if !d.stopping {
			if err := d.dispatch(ctx); err != nil {
				fail(err)
			}
		}
		if len(d.inFlight) == 0 {
			break
		}
		select {
		case r := <-replies:
			if err := d.handle(r); err != nil {
				fail(err)
			}
		case <-ctxDone:
			d.logger.Info().Int("in_flight", len(d.inFlight)).Msg("waiting for running jobs to finish")
			d.stopping = true
			ctxDone = nil
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// dispatch hands jobs to idle workers until the source runs dry.
func (d *driver) dispatch(ctx context.Context) error {
	for len(d.idle) > 0 {
		if ctx.Err() != nil {
			d.stopping = true
			return nil
		}
		job, ok, err := getJob(d.source)
		if err != nil || !ok {
			return err
		}
		msg, err := encodeJob(d.nextSeq, job)
		if err != nil {
			return fmt.Errorf("can't encode %s job: %w", job.Kind(), err)
		}
		worker := d.idle[len(d.idle)-1]
		if err := d.workers[worker].Send(msg); err != nil {
			return fmt.Errorf("can't send job to worker %d: %w", worker, err)
		}
		d.idle = d.idle[:len(d.idle)-1]
		d.inFlight[d.nextSeq] = job
		d.assigned[worker] = d.nextSeq
		d.nextSeq++
	}
	return nil
}

func (d *driver) handle(r reply) error {
	if r.err != nil {
		// A worker that has died can't finish its job.
		if seq, ok := d.assigned[r.worker]; ok {
			delete(d.inFlight, seq)
			delete(d.assigned, r.worker)
		}
		return fmt.Errorf("worker %d failed: %w", r.worker, r.err)
	}
	job, ok := d.inFlight[r.msg.Seq]
	if !ok {
		return fmt.Errorf("worker %d sent unexpected reply %d", r.worker, r.msg.Seq)
	}
	delete(d.inFlight, r.msg.Seq)
	delete(d.assigned, r.worker)
	d.idle = append(d.idle, r.worker)

	switch r.msg.Type {
	case communication.ResponseMessage:
		response, err := decodeResponse(r.msg)
		if err != nil {
			return err
		}
		if err := d.source.ProcessResponse(response); err != nil {
			return sourceError(err)
		}
	case communication.FailedMessage:
		if err := d.source.ProcessErrorResponse(job, r.msg.Error); err != nil {
			return sourceError(err)
		}
	case communication.ErrorMessage:
		return errors.New(r.msg.Error)
	default:
		return fmt.Errorf("worker %d sent unexpected %s message", r.worker, r.msg.Type)
	}
	return nil
}
