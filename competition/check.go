package competition

import (
	"ringmaster/player"
)

// PlayerCheck is a player to start by "ringmaster check", with the board
// settings it would first be given.
type PlayerCheck struct {
	Player    *player.Player
	BoardSize int
	Komi      float64
}

// PlayerChecks lists each distinct player once, with the settings of the
// first matchup it plays in.
func (p *Playoff) PlayerChecks() ([]PlayerCheck, error) {
	var checks []PlayerCheck
	seen := make(map[string]bool)
	for _, m := range p.matchups {
		codes := []string{m.Player1, m.Player2}
		if m.Player2 == m.Player1+"#2" {
			codes = codes[:1]
		}
		for _, code := range codes {
			if seen[code] {
				continue
			}
			seen[code] = true
			checks = append(checks, PlayerCheck{Player: p.players[code], BoardSize: m.BoardSize, Komi: m.Komi})
		}
	}
	return checks, nil
}

// tunerChecks checks the opponent and a candidate built from the given
// optimiser values.
func (b *base) tunerChecks(t *tunerSettings, optimiser []float64) ([]PlayerCheck, error) {
	values, err := engineValues(t.params, optimiser)
	if err != nil {
		return nil, err
	}
	candidate := makeCandidate(t.template, "candidate", t.params, values)
	return []PlayerCheck{
		{Player: b.players[t.opponent], BoardSize: t.config.BoardSize, Komi: t.config.Komi},
		{Player: candidate, BoardSize: t.config.BoardSize, Komi: t.config.Komi},
	}, nil
}

// PlayerChecks uses a candidate at the initial mean.
func (c *CETuner) PlayerChecks() ([]PlayerCheck, error) {
	return c.tunerChecks(c.tunerSettings, c.initial.Mean)
}

// PlayerChecks uses a candidate at the centre of the parameter space.
func (c *MCTSTuner) PlayerChecks() ([]PlayerCheck, error) {
	centre := make([]float64, len(c.params))
	for i := range centre {
		centre[i] = 0.5
	}
	return c.tunerChecks(c.tunerSettings, centre)
}
