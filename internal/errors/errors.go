// Package errors provides the agent's structured error type.
// Codes classify failures into the transient / structural / fatal-to-session
// buckets the orchestrator reacts to; gRPC status codes are mapped for the
// remote OCR backend.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code identifies the category of an AppError.
type Code string

const (
	Unknown           Code = "UNKNOWN"
	Internal          Code = "INTERNAL"
	InvalidArgument   Code = "INVALID_ARGUMENT"
	Timeout           Code = "TIMEOUT"
	Cancelled         Code = "CANCELLED"
	ConfigInvalid     Code = "CONFIG_INVALID"
	ConfigMissing     Code = "CONFIG_MISSING"
	WindowNotFound    Code = "WINDOW_NOT_FOUND"
	StateUnregistered Code = "STATE_UNREGISTERED"
	HandlerFailed     Code = "HANDLER_FAILED"
	CaptureFailed     Code = "CAPTURE_FAILED"
	OCRFailed         Code = "OCR_FAILED"
	OCRUnavailable    Code = "OCR_UNAVAILABLE"
	NotifyFailed      Code = "NOTIFY_FAILED"
	LaunchFailed      Code = "LAUNCH_FAILED"
)

// grpcCodeMap maps agent codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:         codes.Unknown,
	Internal:        codes.Internal,
	InvalidArgument: codes.InvalidArgument,
	Timeout:         codes.DeadlineExceeded,
	Cancelled:       codes.Canceled,
	OCRFailed:       codes.Internal,
	OCRUnavailable:  codes.Unavailable,
	ConfigInvalid:   codes.InvalidArgument,
	ConfigMissing:   codes.FailedPrecondition,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

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

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError converts a gRPC error into an AppError.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

// grpcToCode maps gRPC codes back to agent codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.Unavailable, codes.ResourceExhausted:
		return OCRUnavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Canceled:
		return Cancelled
	case codes.Internal:
		return OCRFailed
	default:
		return Unknown
	}
}

// IsCode checks if an error (or anything it wraps) has a specific code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case OCRUnavailable, Timeout, WindowNotFound, CaptureFailed:
		return true
	default:
		return false
	}
}
