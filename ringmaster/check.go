package ringmaster

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"ringmaster/competition"
	"ringmaster/engine"
	"ringmaster/gtp"
)

// Check starts each player once and sends it the commands a game would
// begin with. Failures are described on w, with the engine's stderr.
func (r *Ringmaster) Check(w io.Writer) error {
	checks, err := r.competition.PlayerChecks()
	if err != nil {
		return err
	}
	failed := 0
	for _, check := range checks {
		if err := checkPlayer(check); err != nil {
			failed++
			fmt.Fprintf(w, "player %s failed startup check:\n%s\n", check.Player.Code, err)
			continue
		}
		r.logger.Debug().Str("player", check.Player.Code).Msg("startup check passed")
	}
	if failed > 0 {
		return errorf("%d of %d players failed the startup check", failed, len(checks))
	}
	return nil
}

func checkPlayer(check competition.PlayerCheck) (err error) {
	p := check.Player
	ch, err := gtp.NewNonblockingChannel(gtp.ProcessConfig{
		Command: p.Command,
		Dir:     p.Dir,
		Env:     p.Environ(),
	})
	if err != nil {
		return err
	}
	c := gtp.NewController(ch, p.Code, gtp.WithTranslations(p.Translations))
	defer func() {
		c.Close()
		if err == nil {
			return
		}
		if diagnostics := strings.TrimSpace(ch.RetrieveDiagnostics()); diagnostics != "" {
			err = fmt.Errorf("%w\nstderr was:\n%s", err, diagnostics)
		}
	}()

	if err := c.CheckProtocolVersion(); err != nil {
		return err
	}
	commands := [][]string{
		{"boardsize", strconv.Itoa(check.BoardSize)},
		{"clear_board"},
		{"komi", engine.FormatKomi(check.Komi)},
	}
	for _, command := range append(commands, p.StartupCommands...) {
		if _, err := c.DoCommand(command[0], command[1:]...); err != nil {
			return err
		}
	}
	return nil
}
