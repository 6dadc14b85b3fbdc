package player

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/maps"

	"ringmaster/utils"
)

// StderrMode says what happens to an engine's standard error.
type StderrMode uint8

const (
	// StderrLog appends engine stderr to the run's log.
	StderrLog StderrMode = iota
	StderrInherit
	StderrDiscard
)

func (m StderrMode) String() string {
	switch m {
	case StderrInherit:
		return "inherit"
	case StderrDiscard:
		return "discard"
	}
	return "log"
}

func (m StderrMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *StderrMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "log", "":
		*m = StderrLog
	case "inherit":
		*m = StderrInherit
	case "discard":
		*m = StderrDiscard
	default:
		return fmt.Errorf("invalid stderr mode: %q", text)
	}
	return nil
}

// Player describes how to run one GTP engine.
type Player struct {
	Code    string            `json:"code"`
	Command []string          `json:"command"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	// IsReliableScorer means the player's final_score is trusted.
	IsReliableScorer bool `json:"is_reliable_scorer"`
	// StartupCommands are sent after boardsize, clear_board and komi;
	// each entry is a command followed by its arguments.
	StartupCommands [][]string        `json:"startup_commands,omitempty"`
	Translations    map[string]string `json:"translations,omitempty"`
	Stderr          StderrMode        `json:"stderr"`
	// StderrPath is the file that receives stderr in StderrLog mode. It is
	// filled in per game.
	StderrPath string `json:"stderr_path,omitempty"`
	AllowClaim bool   `json:"allow_claim,omitempty"`
}

// Copy returns a deep copy of the player.
func (p *Player) Copy() *Player {
	c := *p
	c.Command = append([]string(nil), p.Command...)
	if p.Env != nil {
		c.Env = maps.Clone(p.Env)
	}
	if p.Translations != nil {
		c.Translations = maps.Clone(p.Translations)
	}
	c.StartupCommands = make([][]string, len(p.StartupCommands))
	for i, cmd := range p.StartupCommands {
		c.StartupCommands[i] = append([]string(nil), cmd...)
	}
	return &c
}

// Clone returns a copy under another code.
func (p *Player) Clone(code string) *Player {
	c := p.Copy()
	c.Code = code
	return c
}

// Environ returns the environment additions as KEY=VALUE strings, sorted.
func (p *Player) Environ() []string {
	keys := utils.SortedKeys(p.Env)
	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = k + "=" + p.Env[k]
	}
	return env
}

// ParseCommand splits a command line into words and expands a leading ~
// in the executable.
func ParseCommand(commandLine string) ([]string, error) {
	words, err := Split(commandLine)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command line")
	}
	words[0] = ExpandUser(words[0])
	return words, nil
}

// ResolveExecutable makes a relative executable path containing a
// separator relative to baseDir. Bare names are left for PATH lookup.
func ResolveExecutable(command []string, baseDir string) []string {
	if len(command) == 0 {
		return command
	}
	exe := command[0]
	if filepath.IsAbs(exe) || !strings.ContainsRune(exe, filepath.Separator) {
		return command
	}
	resolved := append([]string(nil), command...)
	resolved[0] = filepath.Join(baseDir, exe)
	return resolved
}

// ExpandUser replaces a leading "~" or "~/" with the home directory.
func ExpandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Split breaks a string into words the way a POSIX shell would, handling
// single quotes, double quotes and backslash escapes. It doesn't expand
// variables or globs.
func Split(s string) ([]string, error) {
	var (
		words   []string
		word    strings.Builder
		inWord  bool
		escaped bool
		quote   rune
	)
	for _, r := range s {
		switch {
		case escaped:
			if quote == '"' && !strings.ContainsRune(`$`+"`"+`"\`+"\n", r) {
				word.WriteRune('\\')
			}
			if r != '\n' {
				word.WriteRune(r)
			}
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in %q", s)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}
