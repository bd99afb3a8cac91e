package output

import (
	"errors"

	"github.com/jonasehrlich/debug-tree/internal/git"
)

// Process exit codes. Failures of the git layer map by kind.
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitInvalid  = 2
	ExitNotFound = 3
	ExitConflict = 4
)

// ExitError is an error that carries an exit code for the CLI.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string { return e.Message }

func (e *ExitError) Unwrap() error { return e.Cause }

// NewUsageError reports bad arguments or flags.
func NewUsageError(message string) *ExitError {
	return &ExitError{Code: ExitInvalid, Message: message}
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch git.KindOf(err) {
	case git.NotFound:
		return ExitNotFound
	case git.Invalid:
		return ExitInvalid
	case git.Conflict:
		return ExitConflict
	}
	return ExitFailure
}
