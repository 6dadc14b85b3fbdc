package ringmaster

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"ringmaster/meta"
)

// statusFile is the contents of the .status file.
type statusFile struct {
	FormatVersion   int             `json:"format_version"`
	CompetitionType string          `json:"competition_type"`
	RunID           string          `json:"run_id,omitempty"`
	VoidGameCount   int             `json:"void_game_count"`
	Competition     json.RawMessage `json:"competition"`
}

func (r *Ringmaster) statusExists() bool {
	_, err := os.Stat(r.path(statusSuffix))
	return err == nil
}

// writeStatus saves the competition's state. The file is written under a
// temporary name and renamed, so a crash never leaves a partial status.
func (r *Ringmaster) writeStatus() error {
	status, err := r.competition.Status()
	if err != nil {
		return errors.Wrap(err, "error getting competition status")
	}
	competitionData, err := json.Marshal(status)
	if err != nil {
		return errors.Wrap(err, "error encoding competition status")
	}
	data, err := json.Marshal(&statusFile{
		FormatVersion:   meta.STATUS_FORMAT_VERSION,
		CompetitionType: r.competitionType,
		RunID:           r.runID,
		VoidGameCount:   r.voidGameCount,
		Competition:     competitionData,
	})
	if err != nil {
		return errors.Wrap(err, "error encoding status")
	}
	tmp := r.path(statusSuffix + ".new")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "error writing status file")
	}
	return errors.Wrap(os.Rename(tmp, r.path(statusSuffix)), "error writing status file")
}

// loadStatus restores the competition from the .status file. Games that
// were in progress when it was written will be played again.
func (r *Ringmaster) loadStatus() error {
	data, err := os.ReadFile(r.path(statusSuffix))
	if err != nil {
		return errors.Wrap(err, "error reading status file")
	}
	var sf statusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return errorf("status file is corrupt: %s", err)
	}
	if sf.FormatVersion != meta.STATUS_FORMAT_VERSION {
		return errorf("status file is from an incompatible version of %s (format %d, expected %d)",
			meta.APP_NAME, sf.FormatVersion, meta.STATUS_FORMAT_VERSION)
	}
	if sf.CompetitionType != r.competitionType {
		return errorf("status file is for a %s competition, but the control file says %s",
			sf.CompetitionType, r.competitionType)
	}
	if err := r.competition.SetStatus(sf.Competition); err != nil {
		return errorf("error loading status file: %s", err)
	}
	r.voidGameCount = sf.VoidGameCount
	return nil
}

// loadOrInitialise restores the status if there is one, and otherwise
// starts the competition afresh.
func (r *Ringmaster) loadOrInitialise() error {
	if r.statusExists() {
		return r.loadStatus()
	}
	r.voidGameCount = 0
	return r.competition.SetCleanStatus()
}
