package competition

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"ringmaster/player"
)

// ControlFile is the decoded form of a competition's YAML control file.
// Settings that have defaults are pointers so an unset value can be told
// apart from a zero one.
type ControlFile struct {
	CompetitionType string                `yaml:"competition_type"`
	Description     string                `yaml:"description"`
	RecordGames     *bool                 `yaml:"record_games"`
	StderrToLog     *bool                 `yaml:"stderr_to_log"`
	GtpLog          bool                  `yaml:"gtp_log"`
	MaxVoidGames    *int                  `yaml:"max_void_games"`
	Players         map[string]PlayerSpec `yaml:"players"`

	GameSettings `yaml:",inline"`

	// playoff
	Matchups []MatchupSpec `yaml:"matchups"`
	// allplayall
	Competitors []string `yaml:"competitors"`

	// tuners
	Parameters      []ParameterSpec `yaml:"parameters"`
	Candidate       *PlayerSpec     `yaml:"candidate"`
	Opponent        string          `yaml:"opponent"`
	CandidateColour string          `yaml:"candidate_colour"`
	Seed            *uint64         `yaml:"seed"`

	// ce_tuner
	SamplesPerGeneration int     `yaml:"samples_per_generation"`
	NumberOfGenerations  int     `yaml:"number_of_generations"`
	BatchSize            int     `yaml:"batch_size"`
	EliteProportion      float64 `yaml:"elite_proportion"`
	StepSize             float64 `yaml:"step_size"`

	// mcts_tuner
	Subdivisions           int      `yaml:"subdivisions"`
	MaxDepth               int      `yaml:"max_depth"`
	ExplorationCoefficient *float64 `yaml:"exploration_coefficient"`
	InitialVisits          *float64 `yaml:"initial_visits"`
	InitialWins            *float64 `yaml:"initial_wins"`
	ExpansionThreshold     float64  `yaml:"expansion_threshold"`
	LogTreeToHistoryPeriod int      `yaml:"log_tree_to_history_period"`
}

// GameSettings can be given at the top level and overridden per matchup.
type GameSettings struct {
	BoardSize            *int     `yaml:"board_size"`
	Komi                 *float64 `yaml:"komi"`
	MoveLimit            *int     `yaml:"move_limit"`
	Scorer               *string  `yaml:"scorer"`
	PreferredScorers     []string `yaml:"preferred_scorers"`
	Handicap             *int     `yaml:"handicap"`
	HandicapStyle        *string  `yaml:"handicap_style"`
	HandicapCompensation *string  `yaml:"internal_scorer_handicap_compensation"`
	Alternating          *bool    `yaml:"alternating"`
	NumberOfGames        *int     `yaml:"number_of_games"`
}

// override returns s with any settings given in o replacing its own.
func (s GameSettings) override(o GameSettings) GameSettings {
	if o.BoardSize != nil {
		s.BoardSize = o.BoardSize
	}
	if o.Komi != nil {
		s.Komi = o.Komi
	}
	if o.MoveLimit != nil {
		s.MoveLimit = o.MoveLimit
	}
	if o.Scorer != nil {
		s.Scorer = o.Scorer
	}
	if o.PreferredScorers != nil {
		s.PreferredScorers = o.PreferredScorers
	}
	if o.Handicap != nil {
		s.Handicap = o.Handicap
	}
	if o.HandicapStyle != nil {
		s.HandicapStyle = o.HandicapStyle
	}
	if o.HandicapCompensation != nil {
		s.HandicapCompensation = o.HandicapCompensation
	}
	if o.Alternating != nil {
		s.Alternating = o.Alternating
	}
	if o.NumberOfGames != nil {
		s.NumberOfGames = o.NumberOfGames
	}
	return s
}

// PlayerSpec describes an engine in the control file.
type PlayerSpec struct {
	Command            Words             `yaml:"command"`
	Cwd                string            `yaml:"cwd"`
	Environment        map[string]string `yaml:"environment"`
	DiscardStderr      bool              `yaml:"discard_stderr"`
	StartupGtpCommands []Words           `yaml:"startup_gtp_commands"`
	GtpTranslations    map[string]string `yaml:"gtp_translations"`
	IsReliableScorer   *bool             `yaml:"is_reliable_scorer"`
	AllowClaim         bool              `yaml:"allow_claim"`
}

// Words is a command line: either a list of words, or a string split the
// way a shell would split it.
type Words []string

func (w *Words) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		words, err := player.Split(value.Value)
		if err != nil {
			return errors.Wrapf(err, "line %d", value.Line)
		}
		*w = words
		return nil
	}
	var words []string
	if err := value.Decode(&words); err != nil {
		return err
	}
	*w = words
	return nil
}

// MatchupSpec is one playoff matchup. It may be written as a two-element
// list of player codes, or as a mapping with per-matchup settings.
type MatchupSpec struct {
	ID           string `yaml:"id"`
	Player1      string `yaml:"player_1"`
	Player2      string `yaml:"player_2"`
	GameSettings `yaml:",inline"`
}

func (m *MatchupSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var players []string
		if err := value.Decode(&players); err != nil {
			return err
		}
		if len(players) != 2 {
			return errors.Errorf("line %d: matchup must name two players", value.Line)
		}
		m.Player1, m.Player2 = players[0], players[1]
		return nil
	}
	type plain MatchupSpec
	return value.Decode((*plain)(m))
}

// ParameterSpec is one tuner parameter.
type ParameterSpec struct {
	Code            string   `yaml:"code"`
	InitialMean     float64  `yaml:"initial_mean"`
	InitialVariance float64  `yaml:"initial_variance"`
	Scale           string   `yaml:"scale"`
	Lower           *float64 `yaml:"lower"`
	Upper           *float64 `yaml:"upper"`
	Format          string   `yaml:"format"`
}

// ParseControlFile decodes a control file. Unknown keys are errors.
func ParseControlFile(data []byte) (*ControlFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cf ControlFile
	if err := dec.Decode(&cf); err != nil {
		return nil, &ControlFileError{Msg: errors.Wrap(err, "error in control file").Error()}
	}
	return &cf, nil
}

// LoadControlFile reads and decodes the control file at path.
func LoadControlFile(path string) (*ControlFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ControlFileError{Msg: errors.Wrapf(err, "can't read control file %s", filepath.Base(path)).Error()}
	}
	return ParseControlFile(data)
}
