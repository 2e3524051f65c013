package waitfor

import (
	"errors"
	"fmt"
)

// WaitError is the failure result of a wait call. It always wraps one
// of the sentinel kinds below, so callers can branch with errors.Is
// and still reach the diagnostic fields through errors.As.
type WaitError struct {
	// Kind is ErrTimeout, ErrAbnormalExit, or ErrCleanExit.
	Kind error

	// Missing describes the parts and conditions still unmet when the
	// wait failed.
	Missing string

	// Excerpt is a bounded prefix of the output accumulated so far.
	Excerpt string

	// ExitCode is the last observed exit code, or -1 if the process
	// had not exited.
	ExitCode int
}

// Error returns the failure description.
func (e *WaitError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrAbnormalExit):
		return fmt.Sprintf("process exited with code %d before expected output (missing %s); output: %q",
			e.ExitCode, e.Missing, e.Excerpt)
	case errors.Is(e.Kind, ErrCleanExit):
		return fmt.Sprintf("process exited cleanly without expected output (missing %s); output: %q",
			e.Missing, e.Excerpt)
	default:
		msg := fmt.Sprintf("timeout waiting for %s", e.Missing)
		if e.ExitCode >= 0 {
			msg += fmt.Sprintf(" (process exited with code %d)", e.ExitCode)
		}
		return fmt.Sprintf("%s; output: %q", msg, e.Excerpt)
	}
}

// Unwrap returns the sentinel kind.
func (e *WaitError) Unwrap() error {
	return e.Kind
}

// Failure kinds for a wait call.
var (
	// ErrTimeout is returned when the deadline passes before the
	// expected output appears.
	ErrTimeout = errors.New("timeout waiting for output")

	// ErrAbnormalExit is returned when the process exits with a
	// non-zero code before the expected output appears.
	ErrAbnormalExit = errors.New("process exited abnormally")

	// ErrCleanExit is returned when the process exits with code zero
	// without ever producing the expected output.
	ErrCleanExit = errors.New("process exited before expected output")
)
