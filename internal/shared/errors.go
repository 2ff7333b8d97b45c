package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Curation errors. Every engine failure wraps exactly one of these.
	ErrNotFound         = fmt.Errorf("not found")
	ErrConflict         = fmt.Errorf("conflict")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrAuthExpired      = fmt.Errorf("authorization expired, re-authentication required")
	ErrUpstream         = fmt.Errorf("upstream request failed")
	ErrSyncFailed       = fmt.Errorf("playlist synchronization failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// Kind returns the name of the curation error kind wrapped by err, or "internal".
//
// SyncFailed takes precedence since a failed push wraps the error that caused it.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSyncFailed):
		return "SyncFailed"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, ErrAuthExpired):
		return "AuthExpired"
	case errors.Is(err, ErrUpstream):
		return "UpstreamError"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidArgument):
		return "InvalidInput"
	default:
		return "internal"
	}
}
