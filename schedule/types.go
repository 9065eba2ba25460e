/*
Package schedule manages hours-of-operation schedules and their overrides.

PURPOSE:
  A Schedule is the parent resource: weekly base hours, a time zone, tags,
  and a collection of override entries. This package is the handler layer
  around the override planner: it reads current state from a Store, works
  out what changed on the parent, plans the override changes, and executes
  them in order.

KEY TYPES:
  Schedule:     The resource as a caller describes or reads it
  Store:        Persistence interface (see store.go)
  Service:      Create / Read / Update / Delete / List / Plan
  UpdateResult: What an update changed

OVERRIDES FIELD:
  Schedule.Overrides == nil means the request does not manage overrides;
  they are left alone. An empty, non-nil slice means "no overrides", so
  every existing one is deleted.

SEE ALSO:
  - overrides/plan.go: Planning algorithm
  - store.go:          Store interfaces
  - service.go:        Handler flows
*/
package schedule

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/warp/schedule-engine/hours"
	"github.com/warp/schedule-engine/overrides"
)

// =============================================================================
// SCHEDULE
// =============================================================================

type Schedule struct {
	ID          string
	InstanceID  string
	Name        string
	Description string
	TimeZone    string
	Config      []hours.Slot
	Tags        map[string]string
	Overrides   []overrides.Record
}

// Validate checks the fields a store needs to accept the schedule.
func (s Schedule) Validate() error {
	if s.InstanceID == "" {
		return fmt.Errorf("%w: instance id is required", ErrInvalidRequest)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if _, err := time.LoadLocation(s.TimeZone); err != nil || s.TimeZone == "" {
		return fmt.Errorf("%w: unknown time zone %q", ErrInvalidRequest, s.TimeZone)
	}
	if err := hours.ValidateAll(s.Config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for i, o := range s.Overrides {
		if o.Name == "" {
			return fmt.Errorf("%w: overrides[%d]: name is required", ErrInvalidRequest, i)
		}
		if err := hours.ValidateAll(o.Config); err != nil {
			return fmt.Errorf("%w: overrides[%d]: %v", ErrInvalidRequest, i, err)
		}
	}
	return nil
}

// sameParent compares the fields an UpdateSchedule call writes.
func sameParent(a, b Schedule) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.TimeZone == b.TimeZone &&
		hours.SameSlots(a.Config, b.Config)
}

// =============================================================================
// PAGES
// =============================================================================

type SchedulePage struct {
	Schedules []Schedule
	NextToken string
}

type OverridePage struct {
	Overrides []overrides.Record
	NextToken string
}

// =============================================================================
// UPDATE RESULT
// =============================================================================

type UpdateResult struct {
	Schedule *Schedule

	// ParentUpdated is true when the schedule's own fields were written.
	ParentUpdated bool
	TagsAdded     map[string]string
	TagsRemoved   []string

	// Operations is the full override plan; Applied is the prefix that ran.
	Operations []overrides.Operation
	Applied    []overrides.Operation
	Summary    overrides.Summary
}

// Skipped reports whether the update found nothing to write.
func (r *UpdateResult) Skipped() bool {
	return !r.ParentUpdated && len(r.TagsAdded) == 0 && len(r.TagsRemoved) == 0 && len(r.Operations) == 0
}
