package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context (file_path, protocol, pattern...).
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// NotFound creates an error for a resource that does not exist.
func NotFound(uri string) *AppError {
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("resource %s does not exist", uri),
		Details: map[string]any{"file_path": uri},
	}
}

// UnsupportedProtocol creates an error for a URI scheme with no registered backend.
func UnsupportedProtocol(protocol string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedProtocol, Message: fmt.Sprintf("no filesystem registered for protocol %q", protocol),
		Details: map[string]any{"protocol": protocol},
	}
}

// BackendUnavailable creates an error for a backend that cannot be reached or configured.
func BackendUnavailable(protocol string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeBackendUnavailable, Message: fmt.Sprintf("the %s backend is unavailable", protocol),
		Retryable: true, Details: map[string]any{"protocol": protocol}, Cause: cause,
	}
}

// ListFailed creates an error for a failed glob/list call.
func ListFailed(pattern string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeListFailed, Message: fmt.Sprintf("listing %s failed", pattern),
		Details: map[string]any{"pattern": pattern}, Cause: cause,
	}
}

// OpenFailed creates an error for a resource that could not be opened.
func OpenFailed(uri string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeOpenFailed, Message: fmt.Sprintf("cannot open %s", uri),
		Details: map[string]any{"file_path": uri}, Cause: cause,
	}
}

// ReadFailed creates an error for a resource that failed mid-read.
func ReadFailed(uri string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeReadFailed, Message: fmt.Sprintf("error reading %s", uri),
		Details: map[string]any{"file_path": uri}, Cause: cause,
	}
}

// DecodeFailed creates an error for a failed decompression or text decoding setup.
func DecodeFailed(what string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("cannot decode %s", what),
		Cause: cause,
	}
}

// InvalidInput creates an error for an invalid argument or option.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// InvalidState creates an error for a checkpoint that cannot be restored.
func InvalidState(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidState, Message: fmt.Sprintf("invalid checkpoint state: %s", reason),
	}
}

// CheckpointFailed creates an error for a failed checkpoint store operation.
func CheckpointFailed(op, key string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeCheckpointFailed, Message: fmt.Sprintf("checkpoint %s for %q failed", op, key),
		Retryable: true, Details: map[string]any{"operation": op, "checkpoint_key": key}, Cause: cause,
	}
}

// Timeout creates an error for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s timed out", operation),
		Retryable: true, Details: map[string]any{"operation": operation},
	}
}

// Internal creates an error for an unexpected internal failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		Cause: cause,
	}
}

// --- Inspection helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable AppError.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}
