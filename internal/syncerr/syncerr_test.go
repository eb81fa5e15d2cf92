package syncerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "typed error",
			err:      New(CodeUnauthenticated, "bad token"),
			expected: CodeUnauthenticated,
		},
		{
			name:     "wrapped typed error",
			err:      fmt.Errorf("outer: %w", New(CodeStorage, "disk full")),
			expected: CodeStorage,
		},
		{
			name:     "plain error",
			err:      errors.New("something broke"),
			expected: CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.expected {
				t.Errorf("CodeOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeRemoteService, "youtube request failed")

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if !IsCode(err, CodeRemoteService) {
		t.Error("expected CodeRemoteService")
	}

	msg := err.Error()
	if msg != "youtube request failed: connection refused" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestNew_NoCause(t *testing.T) {
	err := New(CodeInvalidArgument, "field %s is required", "user_id")
	if err.Error() != "field user_id is required" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("expected no wrapped cause")
	}
}
