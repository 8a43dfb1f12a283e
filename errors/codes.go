package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Backend/availability errors (retryable)
const (
	// ErrCodeBackendUnavailable indicates the storage backend could not be reached.
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeUnsupportedProtocol indicates no backend is registered for a URI scheme.
	ErrCodeUnsupportedProtocol ErrorCode = "UNSUPPORTED_PROTOCOL"
	// ErrCodeListFailed indicates a glob or listing call failed.
	ErrCodeListFailed ErrorCode = "LIST_FAILED"
	// ErrCodeOpenFailed indicates a resource could not be opened.
	ErrCodeOpenFailed ErrorCode = "OPEN_FAILED"
	// ErrCodeReadFailed indicates a resource failed while being read.
	ErrCodeReadFailed ErrorCode = "READ_FAILED"
	// ErrCodeDecodeFailed indicates decompression or text decoding failed.
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
)

// Input/state errors
const (
	// ErrCodeInvalidInput indicates an invalid argument or option.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidState indicates a checkpoint that cannot be restored.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	// ErrCodeCheckpointFailed indicates a checkpoint store operation failed.
	ErrCodeCheckpointFailed ErrorCode = "CHECKPOINT_FAILED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeBackendUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeCheckpointFailed:   true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
