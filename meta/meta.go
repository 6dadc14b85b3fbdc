// meta/meta.go
package meta

// APP_NAME identifies the program in SGF files and logs.
const APP_NAME = "ringmaster"

// VERSION is the program version.
const VERSION = "0.3.0"

// STATUS_FORMAT_VERSION is written to status files; a status file with a
// different version is refused.
const STATUS_FORMAT_VERSION = 1

// DEFAULT_MOVE_LIMIT is the move limit when the control file sets none.
const DEFAULT_MOVE_LIMIT = 1000

// DEFAULT_PARALLEL is the number of games run at once when not specified.
const DEFAULT_PARALLEL = 1

// MCTS tuner defaults for settings the control file leaves out. Every tree
// node starts as if it had DEFAULT_INITIAL_VISITS playouts with
// DEFAULT_INITIAL_WINS wins.
const (
	DEFAULT_EXPLORATION_COEFFICIENT = 0.2
	DEFAULT_INITIAL_VISITS          = 10
	DEFAULT_INITIAL_WINS            = 5
)

// Application returns the SGF AP value, eg "ringmaster:0.3.0".
func Application() string {
	return APP_NAME + ":" + VERSION
}
