package competition

import (
	"fmt"
	"math"
	"strings"

	"ringmaster/player"
)

// Parameter is one tuned engine setting. Scale maps the optimiser's value
// to the value the engine is given.
type Parameter struct {
	Code            string
	InitialMean     float64
	InitialVariance float64
	Scale           func(float64) float64
	Format          string
}

func parseParameters(specs []ParameterSpec) ([]Parameter, error) {
	if len(specs) == 0 {
		return nil, controlFileErrorf("parameters: no parameters specified")
	}
	seen := make(map[string]bool)
	params := make([]Parameter, len(specs))
	for i, spec := range specs {
		if err := checkIdentifier("parameter code", spec.Code); err != nil {
			return nil, inSetting("parameters", err)
		}
		if seen[spec.Code] {
			return nil, controlFileErrorf("parameters: duplicate parameter %s", spec.Code)
		}
		seen[spec.Code] = true
		scale, err := parseScale(spec)
		if err != nil {
			return nil, inSetting("parameter "+spec.Code, err)
		}
		if spec.InitialVariance < 0 {
			return nil, controlFileErrorf("parameter %s: initial_variance must not be negative", spec.Code)
		}
		format := spec.Format
		if format == "" {
			format = "%v"
		}
		params[i] = Parameter{
			Code:            spec.Code,
			InitialMean:     spec.InitialMean,
			InitialVariance: spec.InitialVariance,
			Scale:           scale,
			Format:          format,
		}
	}
	return params, nil
}

func parseScale(spec ParameterSpec) (func(float64) float64, error) {
	bounds := func() (float64, float64, error) {
		if spec.Lower == nil || spec.Upper == nil {
			return 0, 0, controlFileErrorf("scale %s needs lower and upper", spec.Scale)
		}
		return *spec.Lower, *spec.Upper, nil
	}
	switch spec.Scale {
	case "", "identity":
		return func(x float64) float64 { return x }, nil
	case "linear":
		lo, hi, err := bounds()
		if err != nil {
			return nil, err
		}
		return func(x float64) float64 { return lo + x*(hi-lo) }, nil
	case "log":
		lo, hi, err := bounds()
		if err != nil {
			return nil, err
		}
		if lo <= 0 || hi <= 0 {
			return nil, controlFileErrorf("log scale bounds must be positive")
		}
		return func(x float64) float64 { return lo * math.Pow(hi/lo, x) }, nil
	case "integer":
		lo, hi, err := bounds()
		if err != nil {
			return nil, err
		}
		return func(x float64) float64 { return math.Round(lo + x*(hi-lo)) }, nil
	}
	return nil, controlFileErrorf("unknown scale %q", spec.Scale)
}

// engineValues scales optimiser values for the engine.
func engineValues(params []Parameter, optimiser []float64) ([]float64, error) {
	values := make([]float64, len(params))
	for i, p := range params {
		v := p.Scale(optimiser[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &CompetitionError{Msg: fmt.Sprintf(
				"parameter %s: invalid engine value %v for optimiser value %v", p.Code, v, optimiser[i])}
		}
		values[i] = v
	}
	return values, nil
}

// formatValues returns each engine value in its parameter's format.
func formatValues(params []Parameter, values []float64) []string {
	formatted := make([]string, len(params))
	for i, p := range params {
		v := any(values[i])
		if strings.IndexByte("dxXoc", p.Format[len(p.Format)-1]) >= 0 {
			v = int64(values[i])
		}
		formatted[i] = fmt.Sprintf(p.Format, v)
	}
	return formatted
}

// describeValues gives "code=value" pairs for reports and logs.
func describeValues(params []Parameter, values []float64) string {
	formatted := formatValues(params, values)
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Code + "=" + formatted[i]
	}
	return strings.Join(parts, " ")
}

// makeCandidate builds a player from the candidate template, replacing
// "{code}" in its command, startup commands and environment with the
// formatted parameter values.
func makeCandidate(template *player.Player, code string, params []Parameter, values []float64) *player.Player {
	formatted := formatValues(params, values)
	pairs := make([]string, 0, 2*len(params))
	for i, p := range params {
		pairs = append(pairs, "{"+p.Code+"}", formatted[i])
	}
	r := strings.NewReplacer(pairs...)
	c := template.Clone(code)
	for i, w := range c.Command {
		c.Command[i] = r.Replace(w)
	}
	for _, cmd := range c.StartupCommands {
		for i, w := range cmd {
			cmd[i] = r.Replace(w)
		}
	}
	for k, v := range c.Env {
		c.Env[k] = r.Replace(v)
	}
	return c
}

// tunerSettings are the settings both tuners share.
type tunerSettings struct {
	params          []Parameter
	opponent        string
	template        *player.Player
	candidateColour string
	config          GameConfig
}

func (b *base) parseTunerSettings(cf *ControlFile, baseDir string) (*tunerSettings, error) {
	params, err := parseParameters(cf.Parameters)
	if err != nil {
		return nil, err
	}
	if cf.Candidate == nil {
		return nil, controlFileErrorf("candidate not specified")
	}
	template, err := parsePlayer("candidate", *cf.Candidate, baseDir, b.settings.StderrToLog)
	if err != nil {
		return nil, inSetting("candidate", err)
	}
	if cf.Opponent == "" {
		return nil, controlFileErrorf("opponent not specified")
	}
	if _, err := b.player(cf.Opponent); err != nil {
		return nil, inSetting("opponent", err)
	}
	colour := cf.CandidateColour
	switch colour {
	case "":
		colour = "b"
	case "b", "w":
	default:
		return nil, controlFileErrorf("candidate_colour: must be 'b' or 'w'")
	}
	config, err := resolveGameConfig(cf.GameSettings)
	if err != nil {
		return nil, err
	}
	return &tunerSettings{
		params:          params,
		opponent:        cf.Opponent,
		template:        template,
		candidateColour: colour,
		config:          config,
	}, nil
}

// candidateIsBlack says which colour the candidate takes in a game.
func (t *tunerSettings) candidateIsBlack(n int) bool {
	black := t.candidateColour == "b"
	if t.config.Alternating && n%2 == 1 {
		return !black
	}
	return black
}
