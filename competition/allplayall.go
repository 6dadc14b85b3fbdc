package competition

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"ringmaster/utils"
)

// AllPlayAll plays every competitor against every other, as a playoff
// with generated matchups named like "AvB".
type AllPlayAll struct {
	Playoff
	competitors []string
	letters     []string
}

func NewAllPlayAll(code string) *AllPlayAll {
	return &AllPlayAll{Playoff: *NewPlayoff(code)}
}

// competitorLetters returns A, B, ... Z, AA, AB, ...
func competitorLetters(n int) []string {
	letters := make([]string, n)
	for i := range letters {
		s := ""
		for k := i; ; k = k/26 - 1 {
			s = string(rune('A'+k%26)) + s
			if k < 26 {
				break
			}
		}
		letters[i] = s
	}
	return letters
}

func (a *AllPlayAll) Initialise(cf *ControlFile, baseDir string) error {
	if err := a.base.initialise(cf, baseDir); err != nil {
		return err
	}
	if len(cf.Matchups) > 0 {
		return controlFileErrorf("matchups: not allowed in an allplayall competition")
	}
	if len(cf.Competitors) < 2 {
		return controlFileErrorf("competitors: need at least two competitors")
	}
	if len(utils.Dedupe(cf.Competitors)) != len(cf.Competitors) {
		return controlFileErrorf("competitors: duplicate competitor")
	}
	a.competitors = cf.Competitors
	a.letters = competitorLetters(len(cf.Competitors))
	for i := range a.competitors {
		for j := i + 1; j < len(a.competitors); j++ {
			id := a.letters[i] + "v" + a.letters[j]
			if err := a.addMatchup(id, a.competitors[i], a.competitors[j], cf.GameSettings); err != nil {
				return inSetting("competitors", err)
			}
		}
	}
	return nil
}

type allPlayAllStatus struct {
	playoffStatus
	Competitors []string `json:"competitors"`
}

func (a *AllPlayAll) Status() (any, error) {
	status, err := a.Playoff.Status()
	if err != nil {
		return nil, err
	}
	return &allPlayAllStatus{
		playoffStatus: *status.(*playoffStatus),
		Competitors:   a.competitors,
	}, nil
}

// SetStatus restores a saved status. Competitors may be added at the end
// of the list, but not removed or moved, since matchup ids come from their
// positions.
func (a *AllPlayAll) SetStatus(data json.RawMessage) error {
	var status struct {
		Competitors []string `json:"competitors"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("invalid allplayall status: %w", err)
	}
	for i, code := range status.Competitors {
		switch utils.FindIndex(a.competitors, code) {
		case i:
		case -1:
			return fmt.Errorf("competitor %s has been removed from the control file", code)
		default:
			return fmt.Errorf("competitor %s has moved in the control file", code)
		}
	}
	return a.Playoff.SetStatus(data)
}

func (a *AllPlayAll) WriteScreenReport(w io.Writer) {
	a.writeGrid(w)
}

func (a *AllPlayAll) WriteShortReport(w io.Writer) {
	a.writeDescription(w)
	a.writeGrid(w)
	fmt.Fprintln(w)
	a.writeMatchupReports(w)
}

func (a *AllPlayAll) WriteFullReport(w io.Writer) {
	a.WriteShortReport(w)
	a.writeEngineDescriptions(w)
}

// writeGrid shows each competitor's wins and losses against each other
// competitor.
func (a *AllPlayAll) writeGrid(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "\t")
	for _, l := range a.letters {
		fmt.Fprintf(tw, "\t%s", l)
	}
	fmt.Fprintln(tw, "\t")
	for i, code := range a.competitors {
		fmt.Fprintf(tw, "%s\t%s", a.letters[i], code)
		for j := range a.competitors {
			fmt.Fprintf(tw, "\t%s", a.gridCell(i, j))
		}
		fmt.Fprintln(tw, "\t")
	}
	tw.Flush()
}

func (a *AllPlayAll) gridCell(i, j int) string {
	if i == j {
		return ""
	}
	lo, hi := i, j
	if lo > hi {
		lo, hi = hi, lo
	}
	m := a.byID[a.letters[lo]+"v"+a.letters[hi]]
	s := computeMatchupStats(m, a.results[m.ID])
	wins := s.players[m.Player1].wins
	losses := s.players[m.Player2].wins
	if i > j {
		wins, losses = losses, wins
	}
	return fmt.Sprintf("%d-%d", wins, losses)
}
