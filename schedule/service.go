/*
service.go - Handler flows for schedules

PURPOSE:
  Turns a desired Schedule into store calls. Create writes the parent and
  then each override in request order. Update works out the minimum set of
  writes: parent fields, tag changes, then an override plan executed in
  order until the first failure.

UPDATE FLOW:
  1. Load the current schedule (ErrNotFound if missing)
  2. Reject a changed instance id
  3. If overrides are unmanaged and nothing on the parent drifted, stop
  4. Write parent fields and tags that differ
  5. List every existing override (all pages)
  6. Reject ambiguous existing state (duplicate names or ids)
  7. Plan and execute

SEE ALSO:
  - overrides/plan.go:     Planning
  - overrides/executor.go: Execution
*/
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/schedule-engine/overrides"
)

type Service struct {
	store Store
	log   logrus.FieldLogger
}

func NewService(store Store, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, log: log}
}

// =============================================================================
// CREATE / READ / DELETE / LIST
// =============================================================================

// Create stores the schedule and then each of its overrides in order. An
// override carrying an id asks the store to reuse it.
func (s *Service) Create(ctx context.Context, desired Schedule) (*Schedule, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	id, err := s.store.CreateSchedule(ctx, desired)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	log := s.log.WithField("schedule_id", id)

	for i, o := range desired.Overrides {
		oid, err := s.store.CreateOverride(ctx, id, o, o.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create override %d (%q) on %s: %w", i, o.Name, id, err)
		}
		log.WithField("override_id", oid).Debug("override created")
	}
	log.WithField("overrides", len(desired.Overrides)).Info("schedule created")
	return s.Read(ctx, id)
}

// Read returns the schedule with every override, walking all pages.
func (s *Service) Read(ctx context.Context, id string) (*Schedule, error) {
	sch, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	sch.Overrides, err = s.listOverrides(ctx, id)
	if err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	s.log.WithField("schedule_id", id).Info("schedule deleted")
	return nil
}

// List returns one page of an instance's schedules, without overrides.
func (s *Service) List(ctx context.Context, instanceID, pageToken string) (SchedulePage, error) {
	if instanceID == "" {
		return SchedulePage{}, fmt.Errorf("%w: instance id is required", ErrInvalidRequest)
	}
	return s.store.ListSchedules(ctx, instanceID, pageToken)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update brings the stored schedule in line with desired. On an override
// failure the returned result still describes what was applied.
func (s *Service) Update(ctx context.Context, desired Schedule) (*UpdateResult, error) {
	if desired.ID == "" {
		return nil, fmt.Errorf("%w: schedule id is required", ErrInvalidRequest)
	}
	previous, err := s.store.GetSchedule(ctx, desired.ID)
	if err != nil {
		return nil, err
	}
	if desired.InstanceID == "" {
		desired.InstanceID = previous.InstanceID
	}
	if desired.InstanceID != previous.InstanceID {
		return nil, fmt.Errorf("%w: instance id of %s cannot change", ErrInvalidRequest, desired.ID)
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	log := s.log.WithField("schedule_id", desired.ID)
	result := &UpdateResult{}
	result.TagsAdded, result.TagsRemoved = DiffTags(previous.Tags, desired.Tags)
	parentDrift := !sameParent(*previous, desired)

	if desired.Overrides == nil && !parentDrift && len(result.TagsAdded) == 0 && len(result.TagsRemoved) == 0 {
		log.Info("no changes, skipping update")
		result.Schedule, err = s.Read(ctx, desired.ID)
		return result, err
	}

	if parentDrift {
		if err := s.store.UpdateSchedule(ctx, desired); err != nil {
			return nil, fmt.Errorf("failed to update schedule %s: %w", desired.ID, err)
		}
		result.ParentUpdated = true
	}
	if len(result.TagsRemoved) > 0 {
		if err := s.store.UntagSchedule(ctx, desired.ID, result.TagsRemoved); err != nil {
			return nil, fmt.Errorf("failed to untag schedule %s: %w", desired.ID, err)
		}
	}
	if len(result.TagsAdded) > 0 {
		if err := s.store.TagSchedule(ctx, desired.ID, result.TagsAdded); err != nil {
			return nil, fmt.Errorf("failed to tag schedule %s: %w", desired.ID, err)
		}
	}

	if desired.Overrides != nil {
		ops, err := s.plan(ctx, desired)
		if err != nil {
			return nil, err
		}
		result.Operations = ops
		result.Summary = overrides.Summarize(ops)

		exec := overrides.NewExecutor(s.store, log)
		res, execErr := exec.Execute(ctx, desired.ID, ops)
		result.Applied = res.Applied
		if execErr != nil {
			return result, fmt.Errorf("failed to reconcile overrides of %s: %w", desired.ID, execErr)
		}
	}

	log.WithFields(logrus.Fields{
		"parent_updated": result.ParentUpdated,
		"tags_added":     len(result.TagsAdded),
		"tags_removed":   len(result.TagsRemoved),
		"creates":        result.Summary.Creates,
		"updates":        result.Summary.Updates,
		"deletes":        result.Summary.Deletes,
	}).Info("schedule updated")

	result.Schedule, err = s.Read(ctx, desired.ID)
	return result, err
}

// Plan returns the override operations Update would run, without writing.
func (s *Service) Plan(ctx context.Context, desired Schedule) ([]overrides.Operation, error) {
	if desired.ID == "" {
		return nil, fmt.Errorf("%w: schedule id is required", ErrInvalidRequest)
	}
	if _, err := s.store.GetSchedule(ctx, desired.ID); err != nil {
		return nil, err
	}
	if desired.Overrides == nil {
		return []overrides.Operation{}, nil
	}
	return s.plan(ctx, desired)
}

func (s *Service) plan(ctx context.Context, desired Schedule) ([]overrides.Operation, error) {
	existing, err := s.listOverrides(ctx, desired.ID)
	if err != nil {
		return nil, err
	}
	if err := overrides.CheckExisting(existing); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", desired.ID, err)
	}
	return overrides.Plan(desired.Overrides, existing), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) listOverrides(ctx context.Context, scheduleID string) ([]overrides.Record, error) {
	all := []overrides.Record{}
	token := ""
	for {
		page, err := s.store.ListOverrides(ctx, scheduleID, token)
		if err != nil {
			return nil, fmt.Errorf("failed to list overrides of %s: %w", scheduleID, err)
		}
		all = append(all, page.Overrides...)
		if page.NextToken == "" {
			return all, nil
		}
		if page.NextToken == token {
			return nil, errors.New("store returned the same page token twice")
		}
		token = page.NextToken
	}
}
