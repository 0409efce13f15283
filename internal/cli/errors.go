package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/MimeLyc/convertctl/internal/exitcode"
	"github.com/MimeLyc/convertctl/internal/session"
)

type ExitError struct {
	Code int
	Err  error

	// Reported is set when the failure was already shown to the user.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// describeError renders err for the final ERROR line, with a hint for typed
// submission errors.
func describeError(err error) (message string, hint string) {
	var sessErr *session.Error
	if !errors.As(err, &sessErr) {
		return err.Error(), ""
	}
	message = sessErr.Message
	if sessErr.Cause != nil && sessErr.Cause.Error() != sessErr.Message {
		message += ": " + sessErr.Cause.Error()
	}
	return message, session.Advice(err)
}

func isReported(err error) bool {
	var coded *ExitError
	return errors.As(err, &coded) && coded.Reported
}

func mapExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var coded *ExitError
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, context.Canceled) {
		return exitcode.Interrupted
	}
	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		switch sessErr.Type {
		case session.ErrValidation:
			return exitcode.InvalidUsage
		case session.ErrConfig:
			return exitcode.InvalidConfig
		case session.ErrJobTerminal:
			return exitcode.JobFailed
		default:
			return exitcode.RuntimeFailure
		}
	}
	message := err.Error()
	if strings.Contains(message, "unknown command") || strings.Contains(message, "unknown flag") {
		return exitcode.InvalidUsage
	}
	return exitcode.RuntimeFailure
}
