// Package apperr defines the error taxonomy shared by the oracle dispatcher,
// the response sanitizer and the turn coordinator.
package apperr

import (
	"errors"
	"net/http"
)

// Code classifies a failure for retry and surfacing decisions.
type Code string

const (
	// CodeConfiguration marks a request that cannot be dispatched as
	// configured, such as a missing credential. Client fault.
	CodeConfiguration Code = "configuration"
	// CodeSelection marks an oracle rejection of a specific model id.
	// Retryable against the next fallback candidate.
	CodeSelection Code = "selection"
	// CodeOracle marks any other dispatch failure (network, auth, quota).
	CodeOracle Code = "oracle"
	// CodeParse marks an oracle response without a parseable JSON object.
	CodeParse Code = "parse"
	// CodeValidation marks a malformed request at an API boundary.
	CodeValidation Code = "validation"
)

// Error is the domain error type carrying a classification code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain. Errors
// outside the taxonomy are treated as oracle failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeOracle
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error to the status code of the turn boundary.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeConfiguration, CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Narrative returns a player-facing message for a failed turn. It never
// includes provider response bodies or credentials.
func Narrative(err error) string {
	switch CodeOf(err) {
	case CodeConfiguration:
		return "The oracle is not configured: " + messageOf(err) + "."
	case CodeValidation:
		return "The command could not be understood: " + messageOf(err) + "."
	case CodeParse:
		return "The chroniclers returned a garbled account of events. Nothing has changed; issue your command again."
	default:
		return "Couriers failed to reach the oracle. The world holds its breath; nothing has changed. Try again shortly."
	}
}

func messageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
