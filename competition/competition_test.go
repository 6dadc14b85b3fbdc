package competition

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ringmaster/engine"
	"ringmaster/game"
	"ringmaster/gamemaster"
	"ringmaster/player"
)

func newTestCompetition(t *testing.T, text string) Competition {
	t.Helper()
	cf, err := ParseControlFile([]byte(text))
	require.NoError(t, err)
	c, err := New(cf.CompetitionType, "test")
	require.NoError(t, err)
	require.NoError(t, c.Initialise(cf, "/base"))
	require.NoError(t, c.SetCleanStatus())
	return c
}

func initialiseError(t *testing.T, text string) string {
	t.Helper()
	cf, err := ParseControlFile([]byte(text))
	if err == nil {
		var c Competition
		c, err = New(cf.CompetitionType, "test")
		if err == nil {
			err = c.Initialise(cf, "/base")
		}
	}
	require.Error(t, err)
	var cfe *ControlFileError
	require.True(t, errors.As(err, &cfe), "%T: %v", err, err)
	return cfe.Msg
}

// respond makes a response for a job as if the given colour won.
func respond(job *engine.GameJob, winner game.Colour) *engine.GameJobResult {
	result := &gamemaster.Result{
		Players: map[game.Colour]string{
			game.Black: job.Players[game.Black].Code,
			game.White: job.Players[game.White].Code,
		},
		WinningColour: winner,
		GameID:        job.GameID,
	}
	if winner == game.None {
		result.IsJigo = true
		result.SgfResult = "0"
	} else {
		result.SgfResult = winner.Upper() + "+R"
	}
	return &engine.GameJobResult{
		GameID:             job.GameID,
		Result:             result,
		EngineDescriptions: map[game.Colour]string{game.Black: "engine b", game.White: "engine w"},
		GameData:           job.GameData,
	}
}

// roundTrip saves a competition's status as JSON and restores it into a
// freshly initialised competition.
func roundTrip(t *testing.T, c Competition, text string) Competition {
	t.Helper()
	status, err := c.Status()
	require.NoError(t, err)
	data, err := json.Marshal(status)
	require.NoError(t, err)

	cf, err := ParseControlFile([]byte(text))
	require.NoError(t, err)
	restored, err := New(cf.CompetitionType, "test")
	require.NoError(t, err)
	require.NoError(t, restored.Initialise(cf, "/base"))
	require.NoError(t, restored.SetStatus(data))
	return restored
}

const playoffControl = `
competition_type: playoff
description: a test playoff
board_size: 9
komi: 7.5
players:
  t1:
    command: "test-engine --seed 1"
    startup_gtp_commands:
      - "set_level 3"
      - [set_speed, fast]
  t2:
    command: [./engines/t2, --seed, "2"]
    cwd: work
    is_reliable_scorer: false
    discard_stderr: true
matchups:
  - [t1, t2]
  - id: self
    player_1: t1
    player_2: t1
    number_of_games: 2
    alternating: true
    komi: 0.5
    scorer: internal
number_of_games: 4
`

func TestControlFile(t *testing.T) {
	t.Run("players are parsed", func(t *testing.T) {
		c := newTestCompetition(t, playoffControl)
		players := c.Players()
		require.Len(t, players, 3)

		t1, t1clone, t2 := players[0], players[1], players[2]
		require.Equal(t, "t1", t1.Code)
		require.Equal(t, []string{"test-engine", "--seed", "1"}, t1.Command)
		require.Equal(t, [][]string{{"set_level", "3"}, {"set_speed", "fast"}}, t1.StartupCommands)
		require.True(t, t1.IsReliableScorer)
		require.Equal(t, player.StderrLog, t1.Stderr)

		require.Equal(t, "t1#2", t1clone.Code)
		require.Equal(t, t1.Command, t1clone.Command)

		require.Equal(t, []string{"/base/engines/t2", "--seed", "2"}, t2.Command)
		require.Equal(t, "/base/work", t2.Dir)
		require.False(t, t2.IsReliableScorer)
		require.Equal(t, player.StderrDiscard, t2.Stderr)
	})

	t.Run("settings have defaults", func(t *testing.T) {
		c := newTestCompetition(t, playoffControl)
		s := c.Settings()
		require.Equal(t, "playoff", s.Type)
		require.Equal(t, "a test playoff", s.Description)
		require.True(t, s.RecordGames)
		require.True(t, s.StderrToLog)
		require.False(t, s.GtpLog)
		require.Nil(t, s.MaxVoidGames)
	})

	t.Run("load resolves paths against the control file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "comp.yaml")
		require.NoError(t, os.WriteFile(path, []byte(playoffControl), 0o644))
		c, err := Load(path, "comp")
		require.NoError(t, err)
		require.Equal(t, "playoff", c.Settings().Type)
		var t2 *player.Player
		for _, p := range c.Players() {
			if p.Code == "t2" {
				t2 = p
			}
		}
		require.NotNil(t, t2)
		require.Equal(t, filepath.Join(dir, "engines/t2"), t2.Command[0])
	})

	t.Run("matchup settings override the defaults", func(t *testing.T) {
		p := newTestCompetition(t, playoffControl).(*Playoff)
		m := p.Matchups()
		require.Len(t, m, 2)
		require.Equal(t, "0", m[0].ID)
		require.Equal(t, 7.5, m[0].Komi)
		require.Equal(t, 4, m[0].NumberOfGames)
		require.Equal(t, 1000, m[0].MoveLimit)
		require.False(t, m[0].UseInternalScorer)
		require.Equal(t, "self", m[1].ID)
		require.Equal(t, 0.5, m[1].Komi)
		require.Equal(t, 2, m[1].NumberOfGames)
		require.True(t, m[1].UseInternalScorer)
		require.Equal(t, "t1#2", m[1].Player2)
	})

	t.Run("invalid settings are reported", func(t *testing.T) {
		for _, tc := range []struct {
			name, text, msg string
		}{
			{"unknown type", "competition_type: league\n", "unknown competition type: league"},
			{"missing type", "board_size: 9\n", "competition_type not specified"},
			{"unknown key", "competition_type: playoff\nboard_sise: 9\n", "board_sise"},
			{"no matchups", "competition_type: playoff\nplayers: {}\n", "no matchups"},
			{"unknown player", `
competition_type: playoff
board_size: 9
komi: 0
players:
  t1: {command: engine}
matchups: [[t1, t3]]
`, "unknown player t3"},
			{"missing komi", `
competition_type: playoff
board_size: 9
players:
  t1: {command: engine}
matchups: [[t1, t1]]
`, "komi not specified"},
			{"bad handicap", `
competition_type: playoff
board_size: 9
komi: 0
handicap: 12
players:
  t1: {command: engine}
matchups: [[t1, t1]]
`, "handicap"},
			{"bad scorer", `
competition_type: playoff
board_size: 9
komi: 0
scorer: referee
players:
  t1: {command: engine}
matchups: [[t1, t1]]
`, "scorer"},
			{"bad player code", `
competition_type: playoff
board_size: 9
komi: 0
players:
  "t 1": {command: engine}
matchups: [["t 1", "t 1"]]
`, "invalid player code"},
			{"missing command", `
competition_type: playoff
board_size: 9
komi: 0
players:
  t1: {cwd: here}
matchups: [[t1, t1]]
`, "command not specified"},
		} {
			t.Run(tc.name, func(t *testing.T) {
				require.Contains(t, initialiseError(t, tc.text), tc.msg)
			})
		}
	})
}

func TestPlayoff(t *testing.T) {
	t.Run("alternating matchups swap colours", func(t *testing.T) {
		p := newTestCompetition(t, playoffControl).(*Playoff)
		var ids []string
		colours := map[string][2]string{}
		for {
			job, err := p.GetGame()
			if errors.Is(err, ErrNoGameAvailable) {
				break
			}
			require.NoError(t, err)
			ids = append(ids, job.GameID)
			colours[job.GameID] = [2]string{job.Players[game.Black].Code, job.Players[game.White].Code}
			require.Equal(t, "test", job.SgfEvent)
		}
		require.Equal(t, []string{"0_0", "self_0", "0_1", "self_1", "0_2", "0_3"}, ids)
		require.Equal(t, [2]string{"t1", "t2"}, colours["0_1"])
		require.Equal(t, [2]string{"t1", "t1#2"}, colours["self_0"])
		require.Equal(t, [2]string{"t1#2", "t1"}, colours["self_1"])
	})

	t.Run("resumed playoff completes", func(t *testing.T) {
		const control = `
competition_type: playoff
board_size: 9
komi: 7.5
players:
  t1: {command: engine1}
  t2: {command: engine2}
matchups:
  - [t1, t2]
number_of_games: 4
`
		p := newTestCompetition(t, control).(*Playoff)
		for i := 0; i < 2; i++ {
			job, err := p.GetGame()
			require.NoError(t, err)
			require.NoError(t, p.ProcessGameResult(respond(job, game.Black)))
		}
		// a game in progress when the run stops is played again
		_, err := p.GetGame()
		require.NoError(t, err)

		restored := roundTrip(t, p, control).(*Playoff)
		var ids []string
		for {
			job, err := restored.GetGame()
			if errors.Is(err, ErrNoGameAvailable) {
				break
			}
			require.NoError(t, err)
			ids = append(ids, job.GameID)
			require.NoError(t, restored.ProcessGameResult(respond(job, game.White)))
		}
		require.Equal(t, []string{"0_2", "0_3"}, ids)
		require.Len(t, restored.Results("0"), 4)
		require.True(t, restored.AllFixed())
		require.NoError(t, restored.CheckConsistent())
	})

	t.Run("status round trip keeps the report", func(t *testing.T) {
		p := newTestCompetition(t, playoffControl).(*Playoff)
		for _, winner := range []game.Colour{game.Black, game.White, game.None, game.Black} {
			job, err := p.GetGame()
			require.NoError(t, err)
			require.NoError(t, p.ProcessGameResult(respond(job, winner)))
		}
		restored := roundTrip(t, p, playoffControl)

		var before, after bytes.Buffer
		p.WriteScreenReport(&before)
		restored.WriteScreenReport(&after)
		require.Equal(t, before.String(), after.String())
		require.Contains(t, before.String(), "t1 v t2 (2/4 games)")
		require.Contains(t, before.String(), "t1 v t1#2 (2/2 games)")
	})

	t.Run("report shows wins and elo", func(t *testing.T) {
		p := newTestCompetition(t, playoffControl).(*Playoff)
		for i := 0; i < 6; i++ {
			job, err := p.GetGame()
			require.NoError(t, err)
			winner := game.Black
			if job.GameID == "0_3" {
				winner = game.White
			}
			require.NoError(t, p.ProcessGameResult(respond(job, winner)))
		}
		var b bytes.Buffer
		p.WriteFullReport(&b)
		report := b.String()
		require.Contains(t, report, "a test playoff")
		require.Contains(t, report, "t1 always takes black")
		require.Contains(t, report, "75.00%")
		require.Contains(t, report, "elo difference: t1 +190.8")
		require.Contains(t, report, "player t1: engine b")
	})

	t.Run("failed games are retried once", func(t *testing.T) {
		p := newTestCompetition(t, playoffControl)
		job, err := p.GetGame()
		require.NoError(t, err)
		stop, retry := p.ProcessGameError(job, 0)
		require.False(t, stop)
		require.True(t, retry)
		stop, retry = p.ProcessGameError(job, 1)
		require.True(t, stop)
		require.False(t, retry)
	})

	t.Run("results for unknown games are rejected", func(t *testing.T) {
		p := newTestCompetition(t, playoffControl).(*Playoff)
		job, err := p.GetGame()
		require.NoError(t, err)
		require.NoError(t, p.ProcessGameResult(respond(job, game.Black)))
		require.Error(t, p.ProcessGameResult(respond(job, game.Black)))
	})

	t.Run("incompatible status is rejected", func(t *testing.T) {
		p := newTestCompetition(t, playoffControl)
		require.Error(t, p.SetStatus(json.RawMessage(`{"version": 99}`)))
		require.Error(t, p.SetStatus(json.RawMessage(`{"version": 1, "results": {"nope": []}}`)))
	})
}

func TestAllPlayAll(t *testing.T) {
	const control = `
competition_type: allplayall
board_size: 9
komi: 6.5
number_of_games: 2
players:
  p1: {command: engine1}
  p2: {command: engine2}
  p3: {command: engine3}
competitors: [p1, p2, p3]
`
	t.Run("generates every pairing", func(t *testing.T) {
		a := newTestCompetition(t, control).(*AllPlayAll)
		var ids []string
		for _, m := range a.Matchups() {
			ids = append(ids, m.ID+":"+m.Name())
		}
		require.Equal(t, []string{"AvB:p1 v p2", "AvC:p1 v p3", "BvC:p2 v p3"}, ids)
	})

	t.Run("grid shows results", func(t *testing.T) {
		a := newTestCompetition(t, control).(*AllPlayAll)
		for {
			job, err := a.GetGame()
			if errors.Is(err, ErrNoGameAvailable) {
				break
			}
			require.NoError(t, err)
			require.NoError(t, a.ProcessGameResult(respond(job, game.Black)))
		}
		require.True(t, a.AllFixed())
		var b bytes.Buffer
		a.WriteScreenReport(&b)
		require.Contains(t, b.String(), "2-0")
		require.Contains(t, b.String(), "0-2")
	})

	t.Run("status round trip keeps the grid", func(t *testing.T) {
		a := newTestCompetition(t, control).(*AllPlayAll)
		for i := 0; i < 3; i++ {
			job, err := a.GetGame()
			require.NoError(t, err)
			require.NoError(t, a.ProcessGameResult(respond(job, game.Black)))
		}
		_, err := a.GetGame()
		require.NoError(t, err)

		restored := roundTrip(t, a, control).(*AllPlayAll)
		var before, after bytes.Buffer
		a.WriteScreenReport(&before)
		restored.WriteScreenReport(&after)
		require.Equal(t, before.String(), after.String())

		played := 0
		for {
			job, err := restored.GetGame()
			if errors.Is(err, ErrNoGameAvailable) {
				break
			}
			require.NoError(t, err)
			require.NoError(t, restored.ProcessGameResult(respond(job, game.Black)))
			played++
		}
		require.Equal(t, 3, played)
		require.True(t, restored.AllFixed())
		require.NoError(t, restored.CheckConsistent())
	})

	t.Run("competitors can only be added at the end", func(t *testing.T) {
		a := newTestCompetition(t, control).(*AllPlayAll)
		job, err := a.GetGame()
		require.NoError(t, err)
		require.NoError(t, a.ProcessGameResult(respond(job, game.Black)))
		status, err := a.Status()
		require.NoError(t, err)
		data, err := json.Marshal(status)
		require.NoError(t, err)

		withCompetitors := func(list string) error {
			text := strings.Replace(control, "competitors: [p1, p2, p3]", "competitors: "+list, 1)
			text = strings.Replace(text, "  p3: {command: engine3}\n", "  p3: {command: engine3}\n  p4: {command: engine4}\n", 1)
			c := newTestCompetition(t, text)
			return c.SetStatus(data)
		}
		require.NoError(t, withCompetitors("[p1, p2, p3, p4]"))
		require.ErrorContains(t, withCompetitors("[p1, p2]"), "competitor p3 has been removed")
		require.ErrorContains(t, withCompetitors("[p2, p1, p3]"), "competitor p1 has moved")
	})

	t.Run("needs two competitors", func(t *testing.T) {
		require.Contains(t, initialiseError(t, `
competition_type: allplayall
board_size: 9
komi: 6.5
players:
  p1: {command: engine1}
competitors: [p1]
`), "at least two")
	})

	t.Run("letters continue past Z", func(t *testing.T) {
		letters := competitorLetters(28)
		require.Equal(t, "A", letters[0])
		require.Equal(t, "Z", letters[25])
		require.Equal(t, "AA", letters[26])
		require.Equal(t, "AB", letters[27])
	})
}

func TestStatistics(t *testing.T) {
	require.InDelta(t, 0, EloDifference(0.5), 1e-9)
	require.InDelta(t, 190.85, EloDifference(0.75), 0.01)
	require.InDelta(t, -190.85, EloDifference(0.25), 0.01)
	require.InDelta(t, 0.5, LikelihoodOfSuperiority(0, 0), 1e-9)
	require.InDelta(t, 0.8413, LikelihoodOfSuperiority(3, 1), 1e-4)
}

func TestPlayerChecks(t *testing.T) {
	t.Run("each player is checked once", func(t *testing.T) {
		c := newTestCompetition(t, playoffControl)
		checks, err := c.PlayerChecks()
		require.NoError(t, err)
		require.Len(t, checks, 2)
		require.Equal(t, "t1", checks[0].Player.Code)
		require.Equal(t, "t2", checks[1].Player.Code)
		require.Equal(t, 9, checks[0].BoardSize)
		require.Equal(t, 7.5, checks[0].Komi)
	})

	t.Run("tuners check the opponent and a candidate", func(t *testing.T) {
		c := newTestCompetition(t, mctsControl)
		checks, err := c.PlayerChecks()
		require.NoError(t, err)
		require.Len(t, checks, 2)
		require.Equal(t, "opp", checks[0].Player.Code)
		require.Equal(t, "5.000", checks[1].Player.Env["CAND_X"])
	})
}
