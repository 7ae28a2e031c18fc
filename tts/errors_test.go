package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorCodesMatchSentinels tests that every code resolves to its sentinel.
func TestErrorCodesMatchSentinels(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want error
	}{
		{CodeSelectionEmpty, ErrSelectionEmpty},
		{CodeInvalidInput, ErrEmptyMarkup},
		{CodeQuotaExceeded, ErrQuotaExceeded},
		{CodeAuth, ErrAuth},
		{CodeTimeout, ErrTimeout},
		{CodeService, ErrService},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewTTSError(tt.code, "failed", nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if errors.Is(err, ErrInvalidConfig) {
				t.Error("matched an unrelated sentinel")
			}
		})
	}
}

// TestTTSErrorMessage tests error formatting with and without a cause.
func TestTTSErrorMessage(t *testing.T) {
	err := NewTTSError(CodeService, "request failed", nil)
	if got := err.Error(); got != "SERVICE: request failed" {
		t.Errorf("got %q", got)
	}

	cause := errors.New("connection reset")
	err = NewTTSError(CodeService, "request failed", cause)
	if got := err.Error(); !strings.HasSuffix(got, ": connection reset") {
		t.Errorf("got %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
}

// TestTTSErrorWrapped tests matching through fmt.Errorf wrapping.
func TestTTSErrorWrapped(t *testing.T) {
	inner := NewTTSError(CodeQuotaExceeded, "monthly quota used", nil).WithContext("used", 10)
	err := fmt.Errorf("speak: %w", inner)

	var te *TTSError
	if !errors.As(err, &te) {
		t.Fatal("errors.As failed")
	}
	if te.Context["used"] != 10 {
		t.Errorf("context = %v", te.Context)
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Error("wrapped error lost its sentinel")
	}
}

// TestWithContextOnLiteral tests WithContext on an error built without NewTTSError.
func TestWithContextOnLiteral(t *testing.T) {
	err := (&TTSError{Code: CodeAuth}).WithContext("status", 403)
	if err.Context["status"] != 403 {
		t.Errorf("context = %v", err.Context)
	}
}

// TestIsSynthesisFailure tests which errors allow the local engine to take over.
func TestIsSynthesisFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"quota", NewTTSError(CodeQuotaExceeded, "", nil), true},
		{"auth", NewTTSError(CodeAuth, "", nil), true},
		{"timeout", NewTTSError(CodeTimeout, "", nil), true},
		{"service", fmt.Errorf("x: %w", NewTTSError(CodeService, "", nil)), true},
		{"empty selection", NewTTSError(CodeSelectionEmpty, "", nil), false},
		{"empty markup", NewTTSError(CodeInvalidInput, "", nil), false},
		{"cancelled", context.Canceled, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSynthesisFailure(tt.err); got != tt.want {
				t.Errorf("IsSynthesisFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}
