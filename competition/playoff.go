package competition

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"ringmaster/engine"
	"ringmaster/game"
	"ringmaster/gamemaster"
	"ringmaster/scheduler"
)

const playoffStatusVersion = 1

// Matchup is an ordered pair of players with the settings for their games.
type Matchup struct {
	ID      string
	Player1 string
	Player2 string
	GameConfig
}

func (m *Matchup) Name() string {
	return fmt.Sprintf("%s v %s", m.Player1, m.Player2)
}

// colours returns the black and white player codes for a game number.
func (m *Matchup) colours(n int) (black, white string) {
	if m.Alternating && n%2 == 1 {
		return m.Player2, m.Player1
	}
	return m.Player1, m.Player2
}

type matchupGameData struct {
	Matchup string `json:"matchup"`
	Number  int    `json:"number"`
}

// Playoff plays a fixed list of matchups, each for its number_of_games.
type Playoff struct {
	base
	matchups  []*Matchup
	byID      map[string]*Matchup
	scheduler *scheduler.Group
	results   map[string][]*gamemaster.Result
}

func NewPlayoff(code string) *Playoff {
	return &Playoff{
		base: newBase(code),
		byID: make(map[string]*Matchup),
	}
}

func (p *Playoff) Initialise(cf *ControlFile, baseDir string) error {
	if err := p.base.initialise(cf, baseDir); err != nil {
		return err
	}
	if len(cf.Matchups) == 0 {
		return controlFileErrorf("matchups: no matchups specified")
	}
	for i, spec := range cf.Matchups {
		id := spec.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		if err := p.addMatchup(id, spec.Player1, spec.Player2, cf.GameSettings.override(spec.GameSettings)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playoff) addMatchup(id, player1, player2 string, settings GameSettings) error {
	if err := checkIdentifier("matchup id", id); err != nil {
		return err
	}
	if _, ok := p.byID[id]; ok {
		return controlFileErrorf("duplicate matchup id %s", id)
	}
	for _, code := range []string{player1, player2} {
		if _, err := p.player(code); err != nil {
			return inSetting("matchup "+id, err)
		}
	}
	if player1 == player2 {
		// The same engine playing itself needs its own process per colour.
		clone := player2 + "#2"
		if _, ok := p.players[clone]; !ok {
			p.players[clone] = p.players[player2].Clone(clone)
		}
		player2 = clone
	}
	config, err := resolveGameConfig(settings)
	if err != nil {
		return inSetting("matchup "+id, err)
	}
	m := &Matchup{ID: id, Player1: player1, Player2: player2, GameConfig: config}
	p.matchups = append(p.matchups, m)
	p.byID[id] = m
	return nil
}

// Matchups returns the matchups in control file order.
func (p *Playoff) Matchups() []*Matchup { return p.matchups }

func (p *Playoff) SetCleanStatus() error {
	p.scheduler = scheduler.NewGroup()
	for _, m := range p.matchups {
		p.scheduler.AddGroup(m.ID, m.NumberOfGames)
	}
	p.results = make(map[string][]*gamemaster.Result)
	return nil
}

type playoffStatus struct {
	Version            int                               `json:"version"`
	Results            map[string][]*gamemaster.Result   `json:"results"`
	Scheduler          map[string]scheduler.SimpleStatus `json:"scheduler"`
	EngineDescriptions map[string]string                 `json:"engine_descriptions"`
}

func (p *Playoff) Status() (any, error) {
	return &playoffStatus{
		Version:            playoffStatusVersion,
		Results:            p.results,
		Scheduler:          p.scheduler.Status(),
		EngineDescriptions: p.engineDescriptions,
	}, nil
}

// SetStatus restores a saved status. Games that were in progress are
// rolled back so they will be played again.
func (p *Playoff) SetStatus(data json.RawMessage) error {
	if err := checkStatusVersion(data, playoffStatusVersion); err != nil {
		return err
	}
	var status playoffStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("invalid playoff status: %w", err)
	}
	if err := p.SetCleanStatus(); err != nil {
		return err
	}
	for id, results := range status.Results {
		if _, ok := p.byID[id]; !ok {
			return fmt.Errorf("status has results for unknown matchup %s", id)
		}
		p.results[id] = results
	}
	if err := p.scheduler.SetStatus(status.Scheduler); err != nil {
		return err
	}
	p.scheduler.Rollback()
	if status.EngineDescriptions != nil {
		p.engineDescriptions = status.EngineDescriptions
	}
	return nil
}

func (p *Playoff) GetGame() (*engine.GameJob, error) {
	id, n, ok := p.scheduler.Issue()
	if !ok {
		return nil, ErrNoGameAvailable
	}
	m := p.byID[id]
	black, white := m.colours(n)
	return p.newJob(fmt.Sprintf("%s_%d", m.ID, n), p.players[black], p.players[white],
		m.GameConfig, matchupGameData{Matchup: m.ID, Number: n})
}

func (p *Playoff) ProcessGameResult(response *engine.GameJobResult) error {
	var data matchupGameData
	if err := json.Unmarshal(response.GameData, &data); err != nil {
		return fmt.Errorf("invalid game data for %s: %w", response.GameID, err)
	}
	if _, ok := p.byID[data.Matchup]; !ok {
		return fmt.Errorf("result for unknown matchup %s", data.Matchup)
	}
	if err := p.scheduler.Fix(data.Matchup, data.Number); err != nil {
		return fmt.Errorf("result for %s: %w", response.GameID, err)
	}
	p.results[data.Matchup] = append(p.results[data.Matchup], response.Result)
	p.recordEngineDescriptions(response)
	return nil
}

// Results returns the results so far for a matchup.
func (p *Playoff) Results(matchupID string) []*gamemaster.Result {
	return p.results[matchupID]
}

// AllFixed reports whether every matchup has played all its games.
func (p *Playoff) AllFixed() bool { return p.scheduler.AllFixed() }

func (p *Playoff) CheckConsistent() error { return p.scheduler.CheckConsistent() }

func (p *Playoff) WriteScreenReport(w io.Writer) {
	p.writeMatchupReports(w)
}

func (p *Playoff) WriteShortReport(w io.Writer) {
	p.writeDescription(w)
	p.writeMatchupReports(w)
}

func (p *Playoff) WriteFullReport(w io.Writer) {
	p.WriteShortReport(w)
	p.writeEngineDescriptions(w)
}

func (p *Playoff) writeMatchupReports(w io.Writer) {
	for _, m := range p.matchups {
		writeMatchupReport(w, m, p.results[m.ID])
		fmt.Fprintln(w)
	}
}

type playerStats struct {
	wins, winsAsBlack, winsAsWhite int
	gamesAsBlack, gamesAsWhite     int
	forfeitLosses                  int
	cpuTotal                       float64
	cpuCount                       int
}

type matchupStats struct {
	games, decided, jigos, unknown, void int
	blackWins, whiteWins                 int
	players                              map[string]*playerStats
}

func computeMatchupStats(m *Matchup, results []*gamemaster.Result) *matchupStats {
	s := &matchupStats{players: map[string]*playerStats{
		m.Player1: {}, m.Player2: {},
	}}
	for _, r := range results {
		s.games++
		for _, colour := range game.Colours {
			ps, ok := s.players[r.Player(colour)]
			if !ok {
				continue
			}
			if colour == game.Black {
				ps.gamesAsBlack++
			} else {
				ps.gamesAsWhite++
			}
			if t := r.CPUTimes[r.Player(colour)]; t != nil {
				ps.cpuTotal += *t
				ps.cpuCount++
			}
		}
		switch {
		case r.IsJigo:
			s.jigos++
			s.decided++
		case r.IsVoid():
			s.void++
		case r.WinningColour == game.None:
			s.unknown++
		default:
			s.decided++
			if r.WinningColour == game.Black {
				s.blackWins++
			} else {
				s.whiteWins++
			}
			if ps, ok := s.players[r.WinningPlayer()]; ok {
				ps.wins++
				if r.WinningColour == game.Black {
					ps.winsAsBlack++
				} else {
					ps.winsAsWhite++
				}
			}
			if ps, ok := s.players[r.LosingPlayer()]; ok && r.IsForfeit {
				ps.forfeitLosses++
			}
		}
	}
	return s
}

func percent(n, total int) string {
	if total == 0 {
		return "--"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(n)/float64(total))
}

func writeMatchupReport(w io.Writer, m *Matchup, results []*gamemaster.Result) {
	s := computeMatchupStats(m, results)
	limit := ""
	if m.NumberOfGames != scheduler.NoLimit {
		limit = fmt.Sprintf("/%d", m.NumberOfGames)
	}
	fmt.Fprintf(w, "%s (%d%s games)\n", m.Name(), s.games, limit)
	fmt.Fprintf(w, "board size: %d   komi: %s", m.BoardSize, gamemaster.FormatMargin(m.Komi))
	if m.Handicap > 0 {
		style := "fixed"
		if m.HandicapIsFree {
			style = "free"
		}
		fmt.Fprintf(w, "   handicap: %d (%s)", m.Handicap, style)
	}
	fmt.Fprintln(w)
	if !m.Alternating {
		fmt.Fprintf(w, "%s always takes black\n", m.Player1)
	}
	for _, line := range []struct {
		n    int
		what string
	}{
		{s.jigos, "jigos"},
		{s.unknown, "games with unknown result"},
		{s.void, "void games"},
	} {
		if line.n > 0 {
			fmt.Fprintf(w, "%d %s\n", line.n, line.what)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\twins\t\tblack\t\twhite\t\tavg cpu\t")
	for _, code := range []string{m.Player1, m.Player2} {
		ps := s.players[code]
		cpu := "--"
		if ps.cpuCount > 0 {
			cpu = fmt.Sprintf("%.2f", ps.cpuTotal/float64(ps.cpuCount))
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%d\t%s\t%s\t\n", code,
			ps.wins, percent(ps.wins, s.decided),
			ps.winsAsBlack, percent(ps.winsAsBlack, ps.gamesAsBlack),
			ps.winsAsWhite, percent(ps.winsAsWhite, ps.gamesAsWhite),
			cpu)
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%s\t%d\t%s\t\t\n",
		s.blackWins, percent(s.blackWins, s.decided),
		s.whiteWins, percent(s.whiteWins, s.decided))
	tw.Flush()

	for _, code := range []string{m.Player1, m.Player2} {
		if n := s.players[code].forfeitLosses; n > 0 {
			fmt.Fprintf(w, "%s forfeited %d games\n", code, n)
		}
	}
	if s.decided > 0 {
		p1 := s.players[m.Player1]
		p2 := s.players[m.Player2]
		score := (float64(p1.wins) + float64(s.jigos)/2) / float64(s.decided)
		elo := EloDifference(score)
		if math.IsInf(elo, 0) || math.IsNaN(elo) {
			fmt.Fprintf(w, "elo difference: n/a\n")
		} else {
			fmt.Fprintf(w, "elo difference: %s %+.1f\n", m.Player1, elo)
		}
		fmt.Fprintf(w, "likelihood of superiority: %s %.1f%%\n", m.Player1,
			100*LikelihoodOfSuperiority(p1.wins, p2.wins))
	}
}
