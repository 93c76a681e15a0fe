package source

import (
	"errors"
	"fmt"
)

// Failure taxonomy for source fetches. Classification strings from these
// errors end up on failed SourceResults; they are never propagated as
// panics out of the aggregator.
var (
	// ErrUnavailable covers network errors, timeouts and 5xx responses.
	// Retryable per call; a failed result after exhaustion carries it.
	ErrUnavailable = errors.New("source unavailable")

	// ErrRejected covers 4xx and auth failures. Fatal per call.
	ErrRejected = errors.New("source rejected request")

	// ErrMalformed covers schema mismatches in provider responses.
	// Fatal per call.
	ErrMalformed = errors.New("malformed source response")
)

// StatusError carries the HTTP status of a non-2xx provider response.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Source, e.Code)
}

// Classify maps a fetch error to its result classification string.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		// Network errors, timeouts, cancellation and 5xx exhaustion all
		// degrade to unavailability from the aggregator's point of view.
		return "unavailable"
	}
}
