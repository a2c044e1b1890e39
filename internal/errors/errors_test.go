package errors

import (
	"errors"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(20001, "test error")

	if err.Code != 20001 {
		t.Errorf("Expected code 20001, got %d", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Error("Expected Err to be nil")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      NewError(20001, "test error"),
			expected: "[20001] test error",
		},
		{
			name:     "with wrapped error",
			err:      NewError(20001, "test error").Wrap(errors.New("original error")),
			expected: "[20001] test error: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrNotFound.Wrap(originalErr)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Error("Expected unwrapped error to be the original error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   *AppError
		expected bool
	}{
		{
			name:     "same error",
			err:      ErrConnectionUnavailable,
			target:   ErrConnectionUnavailable,
			expected: true,
		},
		{
			name:     "wrapped same error",
			err:      ErrConnectionUnavailable.Wrap(errors.New("dial tcp refused")),
			target:   ErrConnectionUnavailable,
			expected: true,
		},
		{
			name:     "different error",
			err:      ErrNotFound,
			target:   ErrConnectionUnavailable,
			expected: false,
		},
		{
			name:     "non-app error",
			err:      errors.New("standard error"),
			target:   ErrConnectionUnavailable,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "connection unavailable",
			err:      ErrConnectionUnavailable,
			expected: true,
		},
		{
			name:     "timeout counts as connection unavailable",
			err:      ErrTimeout.Wrap(errors.New("context deadline exceeded")),
			expected: true,
		},
		{
			name:     "not found is not transient",
			err:      ErrNotFound,
			expected: false,
		},
		{
			name:     "validation error is not transient",
			err:      ErrValidationError,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
