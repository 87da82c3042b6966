package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors for provider operations.
var (
	// ErrNotFound indicates a zone or record was not found.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the API token was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderUnavailable indicates the provider API is unreachable
	// (transport failure or timeout). Remote state is unknown.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// APIError represents a request the provider received and rejected. It
// carries the HTTP status and the provider's reason text so the caller can
// log them the way an operator expects to read them.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("api error: status %d", e.StatusCode)
}

// Is maps well-known status codes onto the sentinel errors so callers can
// branch with errors.Is instead of inspecting status codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	}
}

// IsNotFound returns true if the error indicates a zone or record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized returns true if the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRateLimited returns true if the error indicates the provider throttled us.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsProviderUnavailable returns true if the error indicates the provider is unreachable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// KeepsRecordID reports whether a failed update left the cached record ID
// trustworthy. Transport failures and rate limiting keep the ID: the record
// almost certainly still exists and retrying the same ID next cycle is
// correct. Every other rejection drops it, since the record may have been
// deleted remotely or the token's scope may have changed, and the next cycle
// should fall back to creation.
func KeepsRecordID(err error) bool {
	return IsProviderUnavailable(err) || IsRateLimited(err)
}
