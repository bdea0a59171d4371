// Package errors provides unified error handling with structured error codes.
// Codes map to the failure domains of the capture loop: configuration,
// recovery, snapshot provider, fingerprinting, encoding.
package errors

import "fmt"

// Code classifies an error by the component that produced it.
type Code int

const (
	CodeUnknown     Code = iota
	CodeConfig           // invalid or missing configuration; fatal before any capture
	CodeRecovery         // output directory unreadable at startup; fatal
	CodeProvider         // snapshot acquisition failed; degrades to an empty capture
	CodeFingerprint      // fingerprinting failed on malformed input
	CodeEncoding         // encoder invocation failed; segment left on disk
)

// String returns the code name for log output.
func (c Code) String() string {
	switch c {
	case CodeConfig:
		return "CONFIG"
	case CodeRecovery:
		return "RECOVERY"
	case CodeProvider:
		return "PROVIDER"
	case CodeFingerprint:
		return "FINGERPRINT"
	case CodeEncoding:
		return "ENCODING"
	default:
		return "UNKNOWN"
	}
}

// Fatal reports whether errors with this code terminate the process.
// Only configuration and startup recovery errors are fatal; everything else
// is caught at the producing boundary and converted to a log line.
func (c Code) Fatal() bool {
	return c == CodeConfig || c == CodeRecovery
}

// AppError is the base error type with a structured code and optional cause.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
