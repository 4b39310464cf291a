package protocol

import (
	"errors"
	"fmt"
)

// Error codes carried in error envelopes.
const (
	CodeMalformed          = "malformed"
	CodeNotArray           = "not_array"
	CodeUnknownCommand     = "unknown_command"
	CodeBadRequest         = "bad_request"
	CodeInternal           = "internal"
	CodeProxyUnavailable   = "proxy_unavailable"
	CodeStorageUnavailable = "storage_unavailable"
)

// Error is a client-facing error. Only Code and Message are ever sent.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Predefined client errors.
var (
	ErrMalformed          = &Error{Code: CodeMalformed, Message: "malformed message"}
	ErrNotArray           = &Error{Code: CodeNotArray, Message: "message must be an array"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
	ErrProxyUnavailable   = &Error{Code: CodeProxyUnavailable, Message: "upstream proxy is not available"}
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable, Message: "backtest storage is not configured"}
)

// UnknownCommand returns the error for an unregistered command name.
func UnknownCommand(name string) *Error {
	return &Error{Code: CodeUnknownCommand, Message: fmt.Sprintf("unknown command: %s", name)}
}

// BadRequest returns an argument validation error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

// ClientError maps any handler error to what the client may see.
// Typed *Error values pass through; everything else becomes ErrInternal.
func ClientError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
