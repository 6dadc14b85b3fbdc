// Package cli is the ringmaster command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ringmaster/communication"
	"ringmaster/competition"
	"ringmaster/jobs"
	"ringmaster/meta"
	"ringmaster/ringmaster"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitUserError   = 1
	ExitInterrupted = 3
	ExitInternal    = 4
)

// usageError is a mistake on the command line.
type usageError struct {
	error
}

type flags struct {
	maxGames int
	parallel int
	quiet    bool
	logGTP   bool
	verbose  bool
}

var actions = map[string]func(ctx context.Context, r *ringmaster.Ringmaster, stdout io.Writer) error{
	"run": func(ctx context.Context, r *ringmaster.Ringmaster, _ io.Writer) error {
		return r.Run(ctx)
	},
	"stop": func(_ context.Context, r *ringmaster.Ringmaster, _ io.Writer) error {
		return r.Stop()
	},
	"show": func(_ context.Context, r *ringmaster.Ringmaster, stdout io.Writer) error {
		return r.Show(stdout)
	},
	"report": func(_ context.Context, r *ringmaster.Ringmaster, _ io.Writer) error {
		return r.Report()
	},
	"reset": func(_ context.Context, r *ringmaster.Ringmaster, _ io.Writer) error {
		return r.Reset()
	},
	"check": func(_ context.Context, r *ringmaster.Ringmaster, stdout io.Writer) error {
		return r.Check(stdout)
	},
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:     "ringmaster <control file> [run|stop|show|report|reset|check]",
		Short:   "Run Go-playing programs against each other",
		Version: meta.VERSION,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.RangeArgs(1, 2)(cmd, args); err != nil {
				return usageError{err}
			}
			if len(args) == 2 {
				if _, ok := actions[args[1]]; !ok {
					return usageError{fmt.Errorf("unknown command %q", args[1])}
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.InfoLevel
			if f.verbose {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()
			log.Logger = logger

			action := "run"
			if len(args) == 2 {
				action = args[1]
			}
			r, err := ringmaster.New(args[0],
				ringmaster.WithMaxGames(f.maxGames),
				ringmaster.WithParallel(f.parallel),
				ringmaster.WithQuiet(f.quiet),
				ringmaster.WithLogGTP(f.logGTP),
				ringmaster.WithLogger(logger),
				ringmaster.WithScreen(stderr),
			)
			if err != nil {
				return err
			}
			return actions[action](cmd.Context(), r, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	cmd.Flags().IntVarP(&f.maxGames, "max-games", "g", -1, "maximum number of games to play in this run")
	cmd.Flags().IntVarP(&f.parallel, "parallel", "j", meta.DEFAULT_PARALLEL, "number of games to play at once")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "don't show progress or results on the terminal")
	cmd.Flags().BoolVar(&f.logGTP, "log-gtp", false, "write a GTP transcript for every game")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "show debug messages")
	cmd.AddCommand(newWorkerCommand())
	return cmd
}

// newWorkerCommand is run by the ringmaster itself to play games in a
// separate process. Jobs arrive on stdin and replies go to stdout.
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The driver decides when to stop; an interrupt from the
			// terminal must not kill a game in progress.
			signal.Ignore(os.Interrupt)
			comm := communication.NewStreamCommunicator(os.Stdin, os.Stdout, nil)
			return jobs.ServeWorker(context.Background(), comm)
		},
	}
}

// exitCode maps the error from a command to the process exit status.
func exitCode(err error) int {
	var (
		usage            usageError
		ringmasterError  *ringmaster.Error
		controlFileError *competition.ControlFileError
		competitionError *competition.CompetitionError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &usage),
		errors.As(err, &ringmasterError),
		errors.As(err, &controlFileError),
		errors.As(err, &competitionError):
		return ExitUserError
	}
	return ExitInternal
}

// Main runs the command line with the given arguments and returns the
// exit status.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	code := exitCode(err)
	switch code {
	case ExitOK:
	case ExitInterrupted:
		fmt.Fprintln(stderr, "ringmaster: interrupted")
	case ExitInternal:
		fmt.Fprintf(stderr, "ringmaster: internal error: %s\n", err)
	default:
		fmt.Fprintf(stderr, "ringmaster: %s\n", err)
	}
	return code
}

// Execute runs the ringmaster with the process's arguments. An interrupt
// stops new games from starting and lets running ones finish.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return Main(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
