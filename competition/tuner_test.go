package competition

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ringmaster/engine"
	"ringmaster/game"
	"ringmaster/meta"
)

const ceControl = `
competition_type: ce_tuner
board_size: 9
komi: 7.5
players:
  opp: {command: gnugo}
opponent: opp
candidate:
  command: "cand-engine --resign {resign}"
  startup_gtp_commands: ["set_speed {speed}"]
parameters:
  - {code: resign, initial_mean: 0.5, initial_variance: 0.01, format: "%.2f"}
  - {code: speed, initial_mean: 5, initial_variance: 1, scale: integer, lower: 0, upper: 1, format: "%d"}
samples_per_generation: 3
number_of_generations: 2
batch_size: 2
elite_proportion: 0.4
step_size: 0.5
seed: 7
`

// winFor makes the candidate in job win or lose.
func winFor(job *engine.GameJob, candidateWins bool, candidate string) *engine.GameJobResult {
	winner := game.Black
	if job.Players[game.White].Code == candidate {
		winner = game.White
	}
	if !candidateWins {
		winner = winner.Opponent()
	}
	return respond(job, winner)
}

func TestCETuner(t *testing.T) {
	t.Run("candidates are built from samples", func(t *testing.T) {
		c := newTestCompetition(t, ceControl).(*CETuner)
		job, err := c.GetGame()
		require.NoError(t, err)
		require.Equal(t, "g0#0_0", job.GameID)
		candidate := job.Players[game.Black]
		require.Equal(t, "g0#0", candidate.Code)
		require.Equal(t, "opp", job.Players[game.White].Code)

		values, err := engineValues(c.params, c.samples[0])
		require.NoError(t, err)
		formatted := formatValues(c.params, values)
		require.Equal(t, []string{"cand-engine", "--resign", formatted[0]}, candidate.Command)
		require.Equal(t, [][]string{{"set_speed", formatted[1]}}, candidate.StartupCommands)
	})

	t.Run("generation waits for its games", func(t *testing.T) {
		c := newTestCompetition(t, ceControl).(*CETuner)
		var jobs []*engine.GameJob
		for {
			job, err := c.GetGame()
			if errors.Is(err, ErrNoGameAvailable) {
				break
			}
			require.NoError(t, err)
			jobs = append(jobs, job)
		}
		require.Len(t, jobs, 6)
		require.Equal(t, "g0#1_0", jobs[1].GameID)
		require.Equal(t, "g0#0_1", jobs[3].GameID)

		mean := c.Distribution().Mean
		elite := c.samples[1]
		for _, job := range jobs {
			require.Equal(t, 0, c.Generation())
			require.NoError(t, c.ProcessGameResult(winFor(job, job.GameID[:4] == "g0#1", job.GameID[:4])))
		}
		require.Equal(t, 1, c.Generation())
		for i := range mean {
			require.InDelta(t, 0.5*elite[i]+0.5*mean[i], c.Distribution().Mean[i], 1e-12)
		}

		job, err := c.GetGame()
		require.NoError(t, err)
		require.Equal(t, "g1#0_0", job.GameID)
	})

	t.Run("finishes after the last generation", func(t *testing.T) {
		c := newTestCompetition(t, ceControl).(*CETuner)
		for {
			job, err := c.GetGame()
			if errors.Is(err, ErrNoGameAvailable) {
				break
			}
			require.NoError(t, err)
			require.NoError(t, c.ProcessGameResult(winFor(job, false, "")))
		}
		require.Equal(t, 2, c.Generation())
		var b bytes.Buffer
		c.WriteScreenReport(&b)
		require.Contains(t, b.String(), "generation 2 of 2")
	})

	t.Run("status round trip mid generation", func(t *testing.T) {
		c := newTestCompetition(t, ceControl).(*CETuner)
		first, err := c.GetGame()
		require.NoError(t, err)
		second, err := c.GetGame()
		require.NoError(t, err)
		require.NoError(t, c.ProcessGameResult(winFor(first, true, "g0#0")))

		restored := roundTrip(t, c, ceControl).(*CETuner)
		require.Equal(t, c.samples, restored.samples)
		require.Equal(t, c.wins, restored.wins)
		var before, after bytes.Buffer
		c.WriteScreenReport(&before)
		restored.WriteScreenReport(&after)
		require.Equal(t, before.String(), after.String())
		job, err := restored.GetGame()
		require.NoError(t, err)
		require.Equal(t, second.GameID, job.GameID)
		require.Equal(t, second.Players[game.Black].Command, job.Players[game.Black].Command)

		var b bytes.Buffer
		restored.WriteScreenReport(&b)
		require.Contains(t, b.String(), "g0#0")
	})

	t.Run("invalid settings are reported", func(t *testing.T) {
		require.Contains(t, initialiseError(t, `
competition_type: ce_tuner
board_size: 9
komi: 7.5
players:
  opp: {command: gnugo}
opponent: opp
candidate: {command: cand}
parameters: [{code: a, initial_mean: 0, initial_variance: 1}]
samples_per_generation: 3
number_of_generations: 2
batch_size: 2
elite_proportion: 1.5
step_size: 0.5
`), "elite_proportion")
		require.Contains(t, initialiseError(t, `
competition_type: ce_tuner
board_size: 9
komi: 7.5
players:
  opp: {command: gnugo}
opponent: nobody
candidate: {command: cand}
parameters: [{code: a}]
`), "unknown player nobody")
	})
}

const mctsControl = `
competition_type: mcts_tuner
board_size: 9
komi: 7.5
number_of_games: 5
players:
  opp: {command: gnugo}
opponent: opp
candidate:
  command: [cand-engine]
  environment: {CAND_X: "{x}"}
candidate_colour: w
parameters:
  - {code: x, scale: linear, lower: 0, upper: 10, format: "%.3f"}
  - {code: y, format: "%.3f"}
subdivisions: 2
max_depth: 3
exploration_coefficient: 0.5
initial_visits: 1
initial_wins: 0
seed: 3
`

func TestMCTSTuner(t *testing.T) {
	t.Run("candidates play the cell centre", func(t *testing.T) {
		c := newTestCompetition(t, mctsControl).(*MCTSTuner)
		job, err := c.GetGame()
		require.NoError(t, err)
		require.Equal(t, "0", job.GameID)
		candidate := job.Players[game.White]
		require.Equal(t, "cand#0", candidate.Code)
		require.Equal(t, "opp", job.Players[game.Black].Code)
		require.Contains(t, []string{"2.500", "7.500"}, candidate.Env["CAND_X"])
	})

	t.Run("stops at the game limit", func(t *testing.T) {
		c := newTestCompetition(t, mctsControl).(*MCTSTuner)
		for i := 0; i < 5; i++ {
			_, err := c.GetGame()
			require.NoError(t, err)
		}
		_, err := c.GetGame()
		require.ErrorIs(t, err, ErrNoGameAvailable)
	})

	t.Run("results update the tree", func(t *testing.T) {
		c := newTestCompetition(t, mctsControl).(*MCTSTuner)
		job, err := c.GetGame()
		require.NoError(t, err)
		require.NoError(t, c.ProcessGameResult(winFor(job, true, "cand#0")))
		require.Equal(t, 2.0, c.Tree().Root().Visits)
		require.Equal(t, 1.0, c.Tree().Root().Wins)
		var b bytes.Buffer
		c.WriteScreenReport(&b)
		require.Contains(t, b.String(), "1 games played, candidate won 100.00%")
		require.Contains(t, b.String(), "best parameters: x=")
	})

	t.Run("status round trip replays outstanding games", func(t *testing.T) {
		c := newTestCompetition(t, mctsControl).(*MCTSTuner)
		var jobs []*engine.GameJob
		for i := 0; i < 3; i++ {
			job, err := c.GetGame()
			require.NoError(t, err)
			jobs = append(jobs, job)
		}
		require.NoError(t, c.ProcessGameResult(winFor(jobs[0], true, "cand#0")))

		restored := roundTrip(t, c, mctsControl).(*MCTSTuner)
		require.Equal(t, c.Tree().NodeCount(), restored.Tree().NodeCount())
		var before, after bytes.Buffer
		c.WriteScreenReport(&before)
		restored.WriteScreenReport(&after)
		require.Equal(t, before.String(), after.String())
		for _, want := range jobs[1:] {
			job, err := restored.GetGame()
			require.NoError(t, err)
			require.Equal(t, want.GameID, job.GameID)
			require.Equal(t, want.Players[game.White].Env, job.Players[game.White].Env)
		}
		job, err := restored.GetGame()
		require.NoError(t, err)
		require.Equal(t, "3", job.GameID)
	})
}

func TestMCTSTunerDefaults(t *testing.T) {
	control := mctsControl
	for _, line := range []string{"exploration_coefficient: 0.5\n", "initial_visits: 1\n", "initial_wins: 0\n"} {
		control = strings.Replace(control, line, "", 1)
	}
	c := newTestCompetition(t, control).(*MCTSTuner)
	require.Equal(t, meta.DEFAULT_EXPLORATION_COEFFICIENT, c.treeConfig.ExplorationCoefficient)
	require.Equal(t, float64(meta.DEFAULT_INITIAL_VISITS), c.treeConfig.InitialVisits)
	require.Equal(t, float64(meta.DEFAULT_INITIAL_WINS), c.treeConfig.InitialWins)
	require.Equal(t, float64(meta.DEFAULT_INITIAL_VISITS), c.Tree().Root().Children[0].Visits)
}

func TestMakeCandidate(t *testing.T) {
	params, err := parseParameters([]ParameterSpec{
		{Code: "a", Format: "%.1f"},
		{Code: "n", Format: "%d", Scale: "integer", Lower: ptr(1.0), Upper: ptr(9.0)},
	})
	require.NoError(t, err)
	values, err := engineValues(params, []float64{0.3, 0.5})
	require.NoError(t, err)
	require.Equal(t, "a=0.3 n=5", describeValues(params, values))

	_, err = engineValues([]Parameter{{Code: "l", Scale: math.Log}}, []float64{0})
	var ce *CompetitionError
	require.ErrorAs(t, err, &ce)

	_, err = parseParameters([]ParameterSpec{{Code: "x", Scale: "log", Lower: ptr(0.0), Upper: ptr(1.0)}})
	require.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
