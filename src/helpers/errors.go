package helpers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

// ObserverError is the common base carrying a message and an optional cause.
type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------

// RateLimitedError means the window budget for one source is spent.
// Source-local and non-fatal; the fetcher moves on to the next source.
type RateLimitedError struct {
	SourceID string
	ResetAt  time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("source %s rate limited until %s", e.SourceID, e.ResetAt.Format(time.RFC3339))
}

// -----------------------------------------------------------------------------

// UpstreamUnreachableError covers network failures and bad statuses.
type UpstreamUnreachableError struct {
	ObserverError
	SourceID string
}

func NewUpstreamUnreachable(sourceID string, cause error) *UpstreamUnreachableError {
	return &UpstreamUnreachableError{
		ObserverError: ObserverError{Message: fmt.Sprintf("upstream %s unreachable", sourceID), Cause: cause},
		SourceID:      sourceID,
	}
}

// -----------------------------------------------------------------------------

// UpstreamDataIncompleteError means the response parsed but is missing some
// of the requested ids. Treated identically to a failed call so that
// correlation inputs are never silently incomplete.
type UpstreamDataIncompleteError struct {
	SourceID   string
	MissingIDs []string
}

func (e *UpstreamDataIncompleteError) Error() string {
	return fmt.Sprintf("upstream %s response missing ids: %s", e.SourceID, strings.Join(e.MissingIDs, ", "))
}

// -----------------------------------------------------------------------------

// SourceAttempt records why one source in the chain failed.
type SourceAttempt struct {
	SourceID string
	Err      error
}

// AllSourcesExhaustedError means every source in the fallback chain failed.
// Fatal for the current request; callers must not retry synchronously.
type AllSourcesExhaustedError struct {
	Attempts []SourceAttempt
}

func (e *AllSourcesExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.SourceID, a.Err))
	}
	return "all sources exhausted (" + strings.Join(parts, "; ") + ")"
}

func (e *AllSourcesExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// -----------------------------------------------------------------------------

// AdmissionRejectedError is retryable by the caller after backoff.
type AdmissionRejectedError struct {
	UserID        string
	QueuePosition int
}

func (e *AdmissionRejectedError) Error() string {
	return fmt.Sprintf("too many concurrent requests for user %s (queue position %d)", e.UserID, e.QueuePosition)
}

// -----------------------------------------------------------------------------
// Predicates
// -----------------------------------------------------------------------------

func IsRateLimited(err error) bool {
	var target *RateLimitedError
	return errors.As(err, &target)
}

func IsAllSourcesExhausted(err error) bool {
	var target *AllSourcesExhaustedError
	return errors.As(err, &target)
}

func IsAdmissionRejected(err error) bool {
	var target *AdmissionRejectedError
	return errors.As(err, &target)
}
