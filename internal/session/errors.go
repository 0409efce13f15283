package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorType int

const (
	// ErrValidation: the advisor blocked the submission; nothing was sent.
	ErrValidation ErrorType = iota
	// ErrUpload: the upload failed; the attempt is over and is not retried.
	ErrUpload
	// ErrPoll: a single status fetch failed; polling continues.
	ErrPoll
	// ErrJobTerminal: the backend reported error or cancelled.
	ErrJobTerminal
	// ErrNavigate: the job completed but fetching the result failed.
	ErrNavigate
	ErrConfig
	ErrUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrUpload:
		return "Upload"
	case ErrPoll:
		return "Poll"
	case ErrJobTerminal:
		return "JobTerminal"
	case ErrNavigate:
		return "Navigate"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Error is the typed error returned by the controller. Message is what the
// user is shown; Cause keeps the underlying transport or parse error.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func IsErrorType(err error, errorType ErrorType) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Type == errorType
	}
	return false
}

// UserMessage returns the text meant for the user: Message for typed errors,
// err.Error() otherwise.
func UserMessage(err error) string {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Advice suggests a next step for a failed submission.
func Advice(err error) string {
	var sessErr *Error
	if !errors.As(err, &sessErr) {
		return ""
	}
	switch sessErr.Type {
	case ErrValidation:
		return "Run `convertctl formats <file>` to see which actions and targets this file supports"
	case ErrUpload:
		return "Check the server URL and that the backend accepts files of this size"
	case ErrJobTerminal:
		return "The backend could not finish the job; try again or pick another target format"
	case ErrNavigate:
		return "The result is still on the server; fetch it with `convertctl download <job_id>`"
	case ErrConfig:
		return "Check the config file and CONVERTCTL_* environment variables"
	default:
		return ""
	}
}
