package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ringmaster/competition"
	"ringmaster/gtp/gtptest"
	"ringmaster/jobs"
)

func TestHelperProcess(t *testing.T) {
	gtptest.RunHelperProcess()
}

func helperCommand(code string, args ...string) string {
	command, _ := gtptest.HelperCommand(append([]string{"-name=" + code}, args...)...)
	quoted := make([]string, len(command))
	for i, word := range command {
		quoted[i] = strconv.Quote(word)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func writeControl(t *testing.T) string {
	t.Helper()
	text := fmt.Sprintf(`
competition_type: playoff
board_size: 9
komi: 7.5
scorer: internal
number_of_games: 1
players:
  t1: {command: %s, environment: {%s: "1"}}
  t2: {command: %s, environment: {%s: "1"}}
matchups:
  - [t1, t2]
`, helperCommand("t1", "up-column", "E"), gtptest.HelperEnv, helperCommand("t2", "up-column", "G"), gtptest.HelperEnv)
	path := filepath.Join(t.TempDir(), "comp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func runMain(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = Main(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCommandLine(t *testing.T) {
	t.Run("run then show", func(t *testing.T) {
		path := writeControl(t)
		code, _, stderr := runMain(path, "run", "--quiet")
		require.Equal(t, ExitOK, code, stderr)
		code, stdout, _ := runMain(path, "show")
		require.Equal(t, ExitOK, code)
		require.Contains(t, stdout, "t1 v t2 (1/1 games)")
	})

	t.Run("run is the default command", func(t *testing.T) {
		path := writeControl(t)
		code, _, stderr := runMain("-q", path)
		require.Equal(t, ExitOK, code, stderr)
		require.FileExists(t, strings.TrimSuffix(path, ".yaml")+".status")
	})

	t.Run("user errors exit with status 1", func(t *testing.T) {
		path := writeControl(t)
		for _, args := range [][]string{
			{},
			{path, "dance"},
			{path, "--parallel=many"},
			{path, "show"},
			{filepath.Join(t.TempDir(), "missing.yaml")},
		} {
			code, _, stderr := runMain(args...)
			require.Equal(t, ExitUserError, code, "%q", args)
			require.True(t, strings.HasPrefix(stderr, "ringmaster: "), stderr)
		}
	})
}

func TestExitCode(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"interrupt", fmt.Errorf("running: %w", context.Canceled), ExitInterrupted},
		{"control file", &competition.ControlFileError{Msg: "bad"}, ExitUserError},
		{"competition error from the job source", &jobs.JobSourceError{Err: &competition.CompetitionError{Msg: "bad"}}, ExitUserError},
		{"anything else", errors.New("boom"), ExitInternal},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}
