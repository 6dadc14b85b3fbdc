package competition

import (
	"path/filepath"
	"regexp"

	"ringmaster/game"
	"ringmaster/meta"
	"ringmaster/player"
	"ringmaster/scheduler"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

func checkIdentifier(kind, s string) error {
	if !identifierRe.MatchString(s) {
		return controlFileErrorf("invalid %s %q", kind, s)
	}
	return nil
}

// GameConfig is a fully resolved set of per-game settings.
type GameConfig struct {
	BoardSize            int
	Komi                 float64
	MoveLimit            int
	UseInternalScorer    bool
	PreferredScorers     []string
	Handicap             int
	HandicapIsFree       bool
	HandicapCompensation game.HandicapCompensation
	Alternating          bool
	// NumberOfGames is scheduler.NoLimit if not given.
	NumberOfGames int
}

// resolveGameConfig applies defaults and validates.
func resolveGameConfig(s GameSettings) (GameConfig, error) {
	c := GameConfig{
		MoveLimit:     meta.DEFAULT_MOVE_LIMIT,
		NumberOfGames: scheduler.NoLimit,
	}
	if s.BoardSize == nil {
		return c, controlFileErrorf("board_size not specified")
	}
	c.BoardSize = *s.BoardSize
	if c.BoardSize < 2 || c.BoardSize > game.MaxBoardSize {
		return c, controlFileErrorf("board_size: must be between 2 and %d", game.MaxBoardSize)
	}
	if s.Komi == nil {
		return c, controlFileErrorf("komi not specified")
	}
	c.Komi = *s.Komi
	if s.MoveLimit != nil {
		if *s.MoveLimit <= 0 {
			return c, controlFileErrorf("move_limit: must be positive")
		}
		c.MoveLimit = *s.MoveLimit
	}
	if s.Scorer != nil {
		switch *s.Scorer {
		case "internal":
			c.UseInternalScorer = true
		case "players":
		default:
			return c, controlFileErrorf("scorer: must be 'internal' or 'players'")
		}
	}
	c.PreferredScorers = s.PreferredScorers
	if s.HandicapCompensation != nil {
		comp, err := game.ParseHandicapCompensation(*s.HandicapCompensation)
		if err != nil {
			return c, inSetting("internal_scorer_handicap_compensation", err)
		}
		c.HandicapCompensation = comp
	}
	if s.HandicapStyle != nil {
		switch *s.HandicapStyle {
		case "free":
			c.HandicapIsFree = true
		case "fixed":
		default:
			return c, controlFileErrorf("handicap_style: must be 'fixed' or 'free'")
		}
	}
	if s.Handicap != nil && *s.Handicap != 0 {
		c.Handicap = *s.Handicap
		if c.HandicapIsFree {
			if c.Handicap < 2 || c.Handicap > c.BoardSize*c.BoardSize-1 {
				return c, controlFileErrorf("handicap: invalid free handicap %d", c.Handicap)
			}
		} else if _, err := game.HandicapPoints(c.Handicap, c.BoardSize); err != nil {
			return c, inSetting("handicap", err)
		}
	}
	if s.Alternating != nil {
		c.Alternating = *s.Alternating
	}
	if s.NumberOfGames != nil {
		if *s.NumberOfGames < 0 {
			return c, controlFileErrorf("number_of_games: must not be negative")
		}
		c.NumberOfGames = *s.NumberOfGames
	}
	return c, nil
}

// parsePlayer turns a player spec into a descriptor. Relative paths are
// taken relative to baseDir, the control file's directory.
func parsePlayer(code string, spec PlayerSpec, baseDir string, stderrToLog bool) (*player.Player, error) {
	if err := checkIdentifier("player code", code); err != nil {
		return nil, err
	}
	if len(spec.Command) == 0 {
		return nil, controlFileErrorf("player %s: command not specified", code)
	}
	command := append([]string(nil), spec.Command...)
	command[0] = player.ExpandUser(command[0])
	p := &player.Player{
		Code:             code,
		Command:          player.ResolveExecutable(command, baseDir),
		Env:              spec.Environment,
		IsReliableScorer: true,
		Translations:     spec.GtpTranslations,
		AllowClaim:       spec.AllowClaim,
	}
	if spec.Cwd != "" {
		dir := player.ExpandUser(spec.Cwd)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		p.Dir = dir
	}
	if spec.IsReliableScorer != nil {
		p.IsReliableScorer = *spec.IsReliableScorer
	}
	for i, cmd := range spec.StartupGtpCommands {
		if len(cmd) == 0 {
			return nil, controlFileErrorf("player %s: startup_gtp_commands: empty command %d", code, i)
		}
		p.StartupCommands = append(p.StartupCommands, append([]string(nil), cmd...))
	}
	switch {
	case spec.DiscardStderr:
		p.Stderr = player.StderrDiscard
	case stderrToLog:
		p.Stderr = player.StderrLog
	default:
		p.Stderr = player.StderrInherit
	}
	return p, nil
}
