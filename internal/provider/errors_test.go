package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrProviderDown,
		ErrModelNotFound,
		ErrBadResponse,
		ErrAuthentication,
	}

	for i, a := range sentinels {
		if a.Error() == "" {
			t.Fatalf("sentinel error %d must have a non-empty message", i)
		}
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel errors must be distinct: %v and %v", a, b)
			}
		}
	}
}

func TestIsUnavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"provider down", ErrProviderDown, true},
		{"wrapped provider down", fmt.Errorf("ollama: %w", ErrProviderDown), true},
		{"model not found", ErrModelNotFound, false},
		{"bad response", ErrBadResponse, false},
		{"generic error", errors.New("something"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsUnavailable(tt.err); got != tt.want {
				t.Errorf("IsUnavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMessageRoleValid(t *testing.T) {
	t.Parallel()

	for _, r := range []MessageRole{MessageRoleSystem, MessageRoleUser, MessageRoleAssistant} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	for _, r := range []MessageRole{"", "tool", "User"} {
		if r.Valid() {
			t.Errorf("%q should be invalid", r)
		}
	}
}
