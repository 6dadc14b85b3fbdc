package competition

import (
	"errors"
	"fmt"
)

// ErrNoGameAvailable is returned by GetGame when there is no game to play
// right now. More may become available when outstanding games finish.
var ErrNoGameAvailable = errors.New("no game available")

// ControlFileError is a problem with the control file's contents.
type ControlFileError struct {
	Msg string
}

func (e *ControlFileError) Error() string { return e.Msg }

func controlFileErrorf(format string, args ...any) error {
	return &ControlFileError{Msg: fmt.Sprintf(format, args...)}
}

// inSetting prefixes a control file error with the setting it came from.
func inSetting(setting string, err error) error {
	var cfe *ControlFileError
	if errors.As(err, &cfe) {
		return &ControlFileError{Msg: fmt.Sprintf("%s: %s", setting, cfe.Msg)}
	}
	return &ControlFileError{Msg: fmt.Sprintf("%s: %s", setting, err)}
}

// CompetitionError is a failure while running a competition that should
// stop the run, such as a tuner producing an invalid candidate.
type CompetitionError struct {
	Msg string
}

func (e *CompetitionError) Error() string { return e.Msg }
