// Package errcode defines the stable error codes surfaced by gateway tools
// and a classifier that maps arbitrary errors onto them.
package errcode

import (
	"errors"
	"fmt"
	"strings"
)

const (
	AuthRequired      = "AUTH_REQUIRED"
	AuthExpired       = "AUTH_EXPIRED"
	Forbidden         = "FORBIDDEN"
	Validation        = "VALIDATION_ERROR"
	NotFound          = "NOT_FOUND"
	Upstream          = "UPSTREAM_ERROR"
	RetrievalDisabled = "RETRIEVAL_DISABLED"
	RetrievalError    = "RETRIEVAL_ERROR"
	Internal          = "INTERNAL_ERROR"
)

// Error carries an explicit code chosen at the failure site.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func New(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a code, preserving its message.
func Wrap(code string, err error) *Error {
	return &Error{Code: code, Message: err.Error()}
}

// Classify resolves an error to (code, message). Tagged errors win; for
// errors raised by external, unstructured sources it falls back to matching
// known prefixes and substrings, defaulting to INTERNAL_ERROR.
func Classify(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}
	message := err.Error()
	switch {
	case strings.HasPrefix(message, RetrievalError):
		return RetrievalError, message
	case strings.HasPrefix(message, RetrievalDisabled):
		return RetrievalDisabled, message
	case strings.HasPrefix(message, AuthRequired):
		return AuthRequired, message
	case strings.HasPrefix(message, AuthExpired):
		return AuthExpired, message
	case strings.Contains(message, "not in allowlist"):
		return Forbidden, message
	case strings.Contains(message, "required"):
		return Validation, message
	case strings.Contains(message, "not found"):
		return NotFound, message
	case strings.Contains(message, "Graph"), strings.Contains(message, "graph"):
		return Upstream, message
	}
	return Internal, message
}
