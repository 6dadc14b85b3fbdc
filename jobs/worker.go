package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"ringmaster/communication"
)

// WorkerFactory starts worker number i and returns the driver's end of
// its communicator.
type WorkerFactory func(i int) (communication.Communicator, error)

// ServeWorker runs jobs received on comm until the stream ends.
func ServeWorker(ctx context.Context, comm communication.Communicator) error {
	for {
		msg, err := comm.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		reply, err := serveOne(ctx, msg)
		if err != nil {
			reply = &communication.Message{Type: communication.ErrorMessage, Kind: msg.Kind, Seq: msg.Seq, Error: err.Error()}
		}
		if err := comm.Send(reply); err != nil {
			return err
		}
	}
}

func serveOne(ctx context.Context, msg *communication.Message) (*communication.Message, error) {
	if msg.Type != communication.JobMessage {
		return nil, fmt.Errorf("unexpected %s message", msg.Type)
	}
	job, err := decodeJob(msg)
	if err != nil {
		return nil, err
	}
	response, err := job.Run(ctx)
	var failed *JobFailed
	if errors.As(err, &failed) {
		return &communication.Message{
			Type:  communication.FailedMessage,
			Kind:  msg.Kind,
			Seq:   msg.Seq,
			Error: failed.Msg,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return communication.NewMessage(communication.ResponseMessage, msg.Kind, msg.Seq, response)
}

// processWorker is a worker running as a child process, talking over its
// stdin and stdout.
type processWorker struct {
	*communication.StreamCommunicator
	cmd   *exec.Cmd
	stdin io.Closer
}

// SpawnWorkers returns a factory that runs command as a worker process.
// The command must call ServeWorker on its stdin and stdout.
func SpawnWorkers(command []string) WorkerFactory {
	return func(int) (communication.Communicator, error) {
		cmd := exec.Command(command[0], command[1:]...)
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("error starting worker: %w", err)
		}
		return &processWorker{
			StreamCommunicator: communication.NewStreamCommunicator(stdout, stdin, nil),
			cmd:                cmd,
			stdin:              stdin,
		}, nil
	}
}

// Close closes the worker's stdin, which makes it exit, and waits for it.
func (w *processWorker) Close() error {
	w.stdin.Close()
	return w.cmd.Wait()
}

// InMemoryWorkers returns a factory that serves jobs in goroutines of this
// process, over pipes, exercising the same codec as worker processes.
func InMemoryWorkers(ctx context.Context) WorkerFactory {
	return func(int) (communication.Communicator, error) {
		jobsR, jobsW := io.Pipe()
		repliesR, repliesW := io.Pipe()
		go func() {
			err := ServeWorker(ctx, communication.NewStreamCommunicator(jobsR, repliesW, nil))
			repliesW.CloseWithError(err)
		}()
		return communication.NewStreamCommunicator(repliesR, jobsW, jobsW), nil
	}
}
