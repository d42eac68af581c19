// Package errors provides structured error types for pulse.
//
// The probe distinguishes two failure classes: sink initialization
// failures, which are fatal and abort startup before the first tick,
// and sink write failures, which are reported and skipped so the tick
// loop keeps running. An interrupt is control flow, not an error, and
// has no type here.
package errors

import (
	"fmt"
	"log/slog"
	"net"
	"os"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeSink       ErrorType = "sink"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeFile       ErrorType = "file"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypePermission ErrorType = "permission"
	ErrorTypeInternal   ErrorType = "internal"
)

// Well-known error codes.
const (
	CodeSinkInitFailed  = "SINK_INIT_FAILED"
	CodeSinkWriteFailed = "SINK_WRITE_FAILED"
	CodeSinkClosed      = "SINK_CLOSED"
	CodeInvalidConfig   = "INVALID_CONFIG"
)

// ProbeError is the base error type for all pulse errors
type ProbeError struct {
	Type       ErrorType
	Code       string
	Message    string
	Underlying error

	// Sink carries the name of the sink involved, when the error is
	// scoped to one.
	Sink string
}

// Error implements the error interface
func (e *ProbeError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Type, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ProbeError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches another error
func (e *ProbeError) Is(target error) bool {
	if t, ok := target.(*ProbeError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithSink records the sink the error belongs to
func (e *ProbeError) WithSink(name string) *ProbeError {
	e.Sink = name
	return e
}

// Common error constructors

// SinkInitError creates a fatal sink initialization error. It aborts
// the probe before the first tick.
func SinkInitError(sink string, underlying error) *ProbeError {
	return &ProbeError{
		Type:       ErrorTypeSink,
		Code:       CodeSinkInitFailed,
		Message:    fmt.Sprintf("failed to initialize sink %q", sink),
		Underlying: underlying,
		Sink:       sink,
	}
}

// SinkWriteError creates a non-fatal per-tick write error. The tick
// loop reports it and moves on to the remaining sinks.
func SinkWriteError(sink string, underlying error) *ProbeError {
	return &ProbeError{
		Type:       ErrorTypeSink,
		Code:       CodeSinkWriteFailed,
		Message:    fmt.Sprintf("failed to write to sink %q", sink),
		Underlying: underlying,
		Sink:       sink,
	}
}

// ConfigError creates a configuration validation error
func ConfigError(message string, underlying error) *ProbeError {
	return &ProbeError{
		Type:       ErrorTypeConfig,
		Code:       CodeInvalidConfig,
		Message:    message,
		Underlying: underlying,
	}
}

// FileError creates a file-related error
func FileError(code, message string, underlying error) *ProbeError {
	return &ProbeError{
		Type:       ErrorTypeFile,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// NetworkError creates a network-related error
func NetworkError(code, message string, underlying error) *ProbeError {
	return &ProbeError{
		Type:       ErrorTypeNetwork,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// InternalError creates an internal error
func InternalError(code, message string, underlying error) *ProbeError {
	return &ProbeError{
		Type:       ErrorTypeInternal,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// Predefined error instances

var (
	ErrSinkClosed     = &ProbeError{Type: ErrorTypeSink, Code: CodeSinkClosed, Message: "sink is closed"}
	ErrFileNotFound   = FileError("FILE_NOT_FOUND", "file not found", nil)
	ErrFilePermission = &ProbeError{Type: ErrorTypePermission, Code: "FILE_PERMISSION", Message: "file permission denied"}
	ErrInvalidInput   = ConfigError("invalid input", nil)
	ErrConnectionLost = NetworkError("CONNECTION_LOST", "connection lost", nil)
)

// ClassifyError attempts to classify a standard Go error into a ProbeError
func ClassifyError(err error) *ProbeError {
	if err == nil {
		return nil
	}

	if probeErr, ok := err.(*ProbeError); ok {
		return probeErr
	}

	switch {
	case os.IsNotExist(err):
		return FileError("FILE_NOT_FOUND", "file not found", err)
	case os.IsPermission(err):
		return &ProbeError{Type: ErrorTypePermission, Code: "PERMISSION_DENIED", Message: "permission denied", Underlying: err}
	case isNetworkError(err):
		return NetworkError("NETWORK_ERROR", "network error", err)
	default:
		return InternalError("UNKNOWN_ERROR", "unknown error", err)
	}
}

// isNetworkError checks if the error is network-related
func isNetworkError(err error) bool {
	if _, ok := err.(net.Error); ok {
		return true
	}
	if _, ok := err.(*net.OpError); ok {
		return true
	}
	return false
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) *ProbeError {
	if err == nil {
		return nil
	}

	classified := ClassifyError(err)
	classified.Message = message + ": " + classified.Message
	return classified
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if probeErr, ok := err.(*ProbeError); ok {
		return probeErr.Type == errorType
	}
	return false
}

// IsCode checks if an error has a specific code
func IsCode(err error, code string) bool {
	if probeErr, ok := err.(*ProbeError); ok {
		return probeErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) string {
	if probeErr, ok := err.(*ProbeError); ok {
		return probeErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetType extracts the error type from an error
func GetType(err error) ErrorType {
	if probeErr, ok := err.(*ProbeError); ok {
		return probeErr.Type
	}
	return ErrorTypeInternal
}

// LogAttrs returns slog attributes for the error
func (e *ProbeError) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("error_type", string(e.Type)),
		slog.String("error_code", e.Code),
		slog.String("error_message", e.Message),
	}

	if e.Sink != "" {
		attrs = append(attrs, slog.String("sink", e.Sink))
	}
	if e.Underlying != nil {
		attrs = append(attrs, slog.String("underlying_error", e.Underlying.Error()))
	}

	return attrs
}
