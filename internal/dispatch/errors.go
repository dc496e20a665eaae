package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors for dispatcher-level failures. Use errors.Is to test for
// them; the concrete values returned by Execute wrap the last provider error.
var (
	// ErrAllProvidersUnavailable is returned when every reachable candidate
	// was attempted and failed.
	ErrAllProvidersUnavailable = errors.New("all providers unavailable")

	// ErrNoCandidatesAvailable is returned when filtering removed every
	// candidate before any attempt was made. It wraps
	// ErrAllProvidersUnavailable, so errors.Is matches both.
	ErrNoCandidatesAvailable = fmt.Errorf("%w: no candidates available after filtering", ErrAllProvidersUnavailable)
)

// ProviderError represents a classified failure from a single provider attempt
type ProviderError struct {
	ProviderID string      // Provider that generated the error
	Kind       FailureKind // Failure classification
	Cause      error       // Underlying error from the provider call
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.ProviderID, e.Kind, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.ProviderID, e.Kind)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// exhaustedError wraps the last provider error behind ErrAllProvidersUnavailable
func exhaustedError(attempted int, last error) error {
	if last == nil {
		return fmt.Errorf("%w: %d candidate(s) attempted", ErrAllProvidersUnavailable, attempted)
	}
	return fmt.Errorf("%w: %d candidate(s) attempted, last error: %w", ErrAllProvidersUnavailable, attempted, last)
}
