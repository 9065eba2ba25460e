/*
errors.go - Error types for the schedule service and its stores

PURPOSE:
  Stores return these sentinels (possibly wrapped) so the service and the
  HTTP layer can classify failures without knowing the backend.

ERROR CATEGORIES:
  1. Client errors   - invalid request, duplicate, limit exceeded
  2. Lookup errors   - schedule or override not found
  3. Everything else - internal, surfaced as-is

USAGE:
  if errors.Is(err, schedule.ErrNotFound) {
      // 404
  }

SEE ALSO:
  - api/handlers.go: Maps these to HTTP status codes
*/
package schedule

import (
	"errors"

	"github.com/warp/schedule-engine/overrides"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a schedule or override does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidRequest is returned for malformed input or forbidden changes
	// (e.g. moving a schedule to another instance).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAlreadyExists is returned when an id or an override name is taken.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrLimitExceeded is returned when a schedule would hold too many overrides.
	ErrLimitExceeded = errors.New("limit exceeded")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request or the
// state it runs against, not to the backend.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, overrides.ErrAmbiguousName) ||
		errors.Is(err, overrides.ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
