package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestAppError_New(t *testing.T) {
	err := New(ErrCodeNotFound, "missing")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "missing" {
		t.Errorf("expected message 'missing', got %q", err.Message)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeBackendUnavailable, true},
		{ErrCodeTimeout, true},
		{ErrCodeCheckpointFailed, true},
		{ErrCodeOpenFailed, false},
		{ErrCodeInvalidState, false},
		{ErrCodeInternal, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := New(tc.code, "x").Retryable; got != tc.want {
				t.Errorf("retryable = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAppError_OpenFailed_PreservesCause(t *testing.T) {
	cause := fs.ErrNotExist
	err := OpenFailed("/data/a.txt", cause)

	if err.Code != ErrCodeOpenFailed {
		t.Errorf("expected OPEN_FAILED, got %s", err.Code)
	}
	if err.Details["file_path"] != "/data/a.txt" {
		t.Errorf("expected file_path detail, got %v", err.Details["file_path"])
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is should reach the original cause")
	}
	if !strings.Contains(err.Error(), "/data/a.txt") {
		t.Errorf("message should mention the path, got %q", err.Error())
	}
}

func TestAppError_ReadFailed(t *testing.T) {
	err := ReadFailed("s3://b/k", fmt.Errorf("connection reset"))
	if err.Code != ErrCodeReadFailed {
		t.Errorf("expected READ_FAILED, got %s", err.Code)
	}
	if err.Cause == nil {
		t.Error("expected cause to be set")
	}
}

func TestAppError_BackendUnavailable(t *testing.T) {
	err := BackendUnavailable("s3", fmt.Errorf("no credentials"))
	if !err.Retryable {
		t.Error("BackendUnavailable should be retryable")
	}
	if err.Details["protocol"] != "s3" {
		t.Errorf("expected protocol=s3, got %v", err.Details["protocol"])
	}
}

func TestAppError_InvalidInput(t *testing.T) {
	err := InvalidInput("compression", "unknown codec")
	if err.Details["field"] != "compression" {
		t.Errorf("expected field=compression, got %v", err.Details["field"])
	}

	noField := InvalidInput("", "bad")
	if _, ok := noField.Details["field"]; ok {
		t.Error("expected no field key when field is empty")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := New(ErrCodeListFailed, "x").
		WithDetail("pattern", "*.txt").
		WithDetails(map[string]any{"protocol": "file"})
	if err.Details["pattern"] != "*.txt" || err.Details["protocol"] != "file" {
		t.Errorf("details not merged: %v", err.Details)
	}
}

func TestAppError_Error_Format(t *testing.T) {
	plain := New(ErrCodeInvalidState, "bad")
	if plain.Error() != "INVALID_STATE: bad" {
		t.Errorf("unexpected format: %q", plain.Error())
	}

	wrapped := New(ErrCodeInternal, "boom").WithCause(fmt.Errorf("root"))
	if !strings.Contains(wrapped.Error(), "cause: root") {
		t.Errorf("expected cause in message, got %q", wrapped.Error())
	}
}

func TestInspectionHelpers(t *testing.T) {
	appErr := Timeout("open")
	wrapped := fmt.Errorf("stage: %w", appErr)

	if !IsAppError(wrapped) {
		t.Error("IsAppError should see through wrapping")
	}
	got, ok := AsAppError(wrapped)
	if !ok || got != appErr {
		t.Error("AsAppError should return the original AppError")
	}
	if CodeOf(wrapped) != ErrCodeTimeout {
		t.Errorf("CodeOf = %s, want TIMEOUT", CodeOf(wrapped))
	}
	if !IsRetryable(wrapped) {
		t.Error("timeout should be retryable")
	}

	plain := fmt.Errorf("plain")
	if IsAppError(plain) || CodeOf(plain) != "" || IsRetryable(plain) {
		t.Error("plain errors are not AppErrors")
	}
}
