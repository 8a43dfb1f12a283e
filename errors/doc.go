// Package errors provides the structured error type shared by every stage and
// backend. An AppError carries a machine-readable code, a retryable flag,
// free-form details (file path, protocol, pattern) and the underlying cause,
// so callers can branch on the code while errors.Is / errors.As still reach
// the original failure.
package errors
