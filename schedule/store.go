/*
store.go - Persistence interface for schedules and overrides

PURPOSE:
  Defines the boundary between the service and the backend holding the
  schedules. The service only ever talks to this interface; the remote
  store in production and the in-memory store in tests look the same.

KEY INTERFACES:
  ScheduleStore: Parent resource CRUD, tagging, paginated listing
  OverrideStore: Paginated override listing plus overrides.Writer
  Store:         Both

CONTRACT:
  - GetSchedule returns tags but leaves Overrides nil
  - ListOverrides returns one page; an empty NextToken ends the listing
  - CreateOverride honours a non-empty id hint or assigns a fresh id
  - Override names are unique within a schedule (ErrAlreadyExists)
  - DeleteSchedule removes the schedule's overrides too

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:    SQLite
  - schedule/store/memory.go:  In-memory for testing

SEE ALSO:
  - service.go: Uses Store
*/
package schedule

import (
	"context"
	"fmt"
	"strconv"

	"github.com/warp/schedule-engine/overrides"
)

const (
	// DefaultPageSize is the page size stores use when none is configured.
	DefaultPageSize = 50

	// DefaultMaxOverrides caps the overrides one schedule may hold.
	DefaultMaxOverrides = 100
)

// =============================================================================
// STORE
// =============================================================================

type ScheduleStore interface {
	// CreateSchedule stores s with its tags and returns its id. A non-empty
	// s.ID is used as-is.
	CreateSchedule(ctx context.Context, s Schedule) (string, error)

	GetSchedule(ctx context.Context, id string) (*Schedule, error)

	// UpdateSchedule writes name, description, time zone and config.
	UpdateSchedule(ctx context.Context, s Schedule) error

	DeleteSchedule(ctx context.Context, id string) error

	ListSchedules(ctx context.Context, instanceID, pageToken string) (SchedulePage, error)

	TagSchedule(ctx context.Context, id string, tags map[string]string) error
	UntagSchedule(ctx context.Context, id string, keys []string) error
}

type OverrideStore interface {
	ListOverrides(ctx context.Context, scheduleID, pageToken string) (OverridePage, error)
	overrides.Writer
}

type Store interface {
	ScheduleStore
	OverrideStore
}

// =============================================================================
// PAGE TOKENS
// =============================================================================

// PageToken encodes the offset of the next page. Zero offset means no more
// pages and encodes as "".
func PageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return strconv.Itoa(offset)
}

// ParseToken decodes a token produced by PageToken.
func ParseToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad page token %q", ErrInvalidRequest, token)
	}
	return n, nil
}
