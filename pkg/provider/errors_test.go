package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_SentinelMapping(t *testing.T) {
	tests := []struct {
		status int
		target error
		want   bool
	}{
		{404, ErrNotFound, true},
		{401, ErrUnauthorized, true},
		{403, ErrUnauthorized, true},
		{429, ErrRateLimited, true},
		{500, ErrNotFound, false},
		{403, ErrNotFound, false},
		{429, ErrUnauthorized, false},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Reason: "test"}
		if got := errors.Is(err, tt.target); got != tt.want {
			t.Errorf("errors.Is(APIError{%d}, %v) = %v, want %v", tt.status, tt.target, got, tt.want)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 403, Reason: "Forbidden"}
	want := "api error: status 403: Forbidden"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = &APIError{StatusCode: 500}
	want = "api error: status 500"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapError(t *testing.T) {
	base := &APIError{StatusCode: 404, Reason: "record not found"}
	wrapped := WrapError("cloudflare", "update record", base)

	if !IsNotFound(wrapped) {
		t.Error("wrapped APIError(404) should still match ErrNotFound")
	}

	var pe *ProviderError
	if !errors.As(wrapped, &pe) {
		t.Fatal("expected *ProviderError")
	}
	if pe.Provider != "cloudflare" || pe.Operation != "update record" {
		t.Errorf("unexpected context: %+v", pe)
	}
}

func TestWrapError_Nil(t *testing.T) {
	if WrapError("cloudflare", "ping", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestKeepsRecordID(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport failure", fmt.Errorf("request: %w", ErrProviderUnavailable), true},
		{"rate limited", &APIError{StatusCode: 429}, true},
		{"forbidden", &APIError{StatusCode: 403, Reason: "Forbidden"}, false},
		{"not found", &APIError{StatusCode: 404}, false},
		{"server error", &APIError{StatusCode: 500}, false},
		{"plain error", errors.New("malformed response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError("cloudflare", "update record", tt.err)
			if got := KeepsRecordID(wrapped); got != tt.want {
				t.Errorf("KeepsRecordID(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
