package ai

import (
	"errors"

	"github.com/Protocol-Lattice/specgen/src/plan"
)

// Error kinds returned by the service. Callers classify with errors.Is.
var (
	ErrConfiguration      = errors.New("completion service is not configured")
	ErrServiceUnavailable = errors.New("completion service has not been initialized")
	ErrEmptyResponse      = errors.New("no content received from completion service")
	ErrRequestFailed      = errors.New("completion request failed")
)

// Outcome names the result class of a completion for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, plan.ErrParse):
		return "parse_error"
	case errors.Is(err, ErrRequestFailed):
		return "request_failed"
	default:
		return "error"
	}
}
