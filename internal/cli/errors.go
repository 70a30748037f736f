package cli

import (
	"errors"

	opts "github.com/goliatone/go-optstore"
)

// Exit codes returned by Run.
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitUsageError   = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: ExitUsageError, err: err}
}

// exitCode maps err to a process exit code. Malformed keys count as usage
// errors. Errors raised by cobra itself (unknown flags, wrong argument count)
// are not wrapped and also map to ExitUsageError.
func exitCode(err error, fromCommand bool) int {
	if err == nil {
		return ExitSuccess
	}
	var coded *exitError
	if errors.As(err, &coded) {
		return coded.code
	}
	if errors.Is(err, opts.ErrInvalidPath) {
		return ExitUsageError
	}
	if fromCommand {
		return ExitRuntimeError
	}
	return ExitUsageError
}
