package ringmaster

import "fmt"

// Error is a problem the user can fix, such as a missing control file or
// a status file written by an incompatible version.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}
