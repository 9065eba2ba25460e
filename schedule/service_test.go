package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/schedule-engine/hours"
	"github.com/warp/schedule-engine/overrides"
	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/schedule/store"
)

// =============================================================================
// FIXTURES
// =============================================================================

func newService(t *testing.T) (*schedule.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	log, _ := test.NewNullLogger()
	return schedule.NewService(mem, log), mem
}

func support() schedule.Schedule {
	return schedule.Schedule{
		InstanceID: "inst-1",
		Name:       "Support",
		TimeZone:   "America/New_York",
		Config: []hours.Slot{
			hours.NewSlot(hours.Monday, 9, 0, 17, 0),
			hours.NewSlot(hours.Tuesday, 9, 0, 17, 0),
		},
		Tags: map[string]string{"team": "support"},
	}
}

func holiday(id, name string, slots ...hours.Slot) overrides.Record {
	return overrides.Record{
		ID:            id,
		Name:          name,
		EffectiveFrom: "2025-12-24",
		EffectiveTill: "2025-12-26",
		Config:        slots,
	}
}

var short = hours.NewSlot(hours.Monday, 9, 0, 13, 0)

func names(recs []overrides.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

// countingStore counts write calls and can fail a chosen one.
type countingStore struct {
	*store.Memory
	writes   int
	failOn   string // "create", "update", "delete"
	failures int
}

func (c *countingStore) UpdateSchedule(ctx context.Context, s schedule.Schedule) error {
	c.writes++
	return c.Memory.UpdateSchedule(ctx, s)
}

func (c *countingStore) TagSchedule(ctx context.Context, id string, tags map[string]string) error {
	c.writes++
	return c.Memory.TagSchedule(ctx, id, tags)
}

func (c *countingStore) UntagSchedule(ctx context.Context, id string, keys []string) error {
	c.writes++
	return c.Memory.UntagSchedule(ctx, id, keys)
}

func (c *countingStore) fail(kind string) error {
	c.writes++
	if c.failOn == kind && c.failures > 0 {
		c.failures--
		return errors.New("throttled")
	}
	return nil
}

func (c *countingStore) CreateOverride(ctx context.Context, id string, rec overrides.Record, hint string) (string, error) {
	if err := c.fail("create"); err != nil {
		return "", err
	}
	return c.Memory.CreateOverride(ctx, id, rec, hint)
}

func (c *countingStore) UpdateOverride(ctx context.Context, id string, rec overrides.Record) error {
	if err := c.fail("update"); err != nil {
		return err
	}
	return c.Memory.UpdateOverride(ctx, id, rec)
}

func (c *countingStore) DeleteOverride(ctx context.Context, id, oid string) error {
	if err := c.fail("delete"); err != nil {
		return err
	}
	return c.Memory.DeleteOverride(ctx, id, oid)
}

// =============================================================================
// CREATE / READ
// =============================================================================

func TestCreate_WritesOverridesInOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	desired := support()
	desired.Overrides = []overrides.Record{
		holiday("", "Christmas", short),
		holiday("keep-me", "Boxing Day"),
	}

	got, err := svc.Create(ctx, desired)
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "inst-1", got.InstanceID)
	assert.Equal(t, map[string]string{"team": "support"}, got.Tags)
	assert.Equal(t, []string{"Christmas", "Boxing Day"}, names(got.Overrides))
	assert.NotEmpty(t, got.Overrides[0].ID)
	assert.Equal(t, "keep-me", got.Overrides[1].ID, "id hint is honoured")
}

func TestCreate_RejectsInvalid(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name   string
		mutate func(*schedule.Schedule)
	}{
		{"no instance", func(s *schedule.Schedule) { s.InstanceID = "" }},
		{"no name", func(s *schedule.Schedule) { s.Name = "" }},
		{"bad zone", func(s *schedule.Schedule) { s.TimeZone = "Mars/Olympus" }},
		{"bad slot", func(s *schedule.Schedule) { s.Config[0].Start.Hours = 25 }},
		{"unnamed override", func(s *schedule.Schedule) { s.Overrides = []overrides.Record{holiday("", "")} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := support()
			tt.mutate(&s)
			_, err := svc.Create(context.Background(), s)
			assert.ErrorIs(t, err, schedule.ErrInvalidRequest)
			assert.True(t, schedule.IsClientError(err))
		})
	}
}

func TestRead_WalksAllPages(t *testing.T) {
	svc, mem := newService(t)
	mem.PageSize = 2
	ctx := context.Background()

	desired := support()
	for i := 0; i < 5; i++ {
		desired.Overrides = append(desired.Overrides, holiday("", fmt.Sprintf("h%d", i)))
	}
	created, err := svc.Create(ctx, desired)
	require.NoError(t, err)

	got, err := svc.Read(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"h0", "h1", "h2", "h3", "h4"}, names(got.Overrides))
}

func TestRead_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Read(context.Background(), "missing")
	assert.True(t, schedule.IsNotFound(err))
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_NoChangesSkipsWrites(t *testing.T) {
	mem := store.NewMemory()
	cs := &countingStore{Memory: mem}
	svc := schedule.NewService(cs, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, support())
	require.NoError(t, err)
	cs.writes = 0

	desired := support()
	desired.ID = created.ID
	// Same slots, different order.
	desired.Config = []hours.Slot{desired.Config[1], desired.Config[0]}

	res, err := svc.Update(ctx, desired)
	require.NoError(t, err)

	assert.True(t, res.Skipped())
	assert.Zero(t, cs.writes)
	assert.Equal(t, created.ID, res.Schedule.ID)
}

func TestUpdate_ParentAndTags(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s := support()
	s.Tags = map[string]string{"team": "support", "tier": "1"}
	created, err := svc.Create(ctx, s)
	require.NoError(t, err)

	desired := support()
	desired.ID = created.ID
	desired.Description = "after hours"
	desired.Tags = map[string]string{"team": "sales", "region": "us"}

	res, err := svc.Update(ctx, desired)
	require.NoError(t, err)

	assert.True(t, res.ParentUpdated)
	assert.Equal(t, map[string]string{"team": "sales", "region": "us"}, res.TagsAdded)
	assert.Equal(t, []string{"team", "tier"}, res.TagsRemoved)
	assert.Equal(t, "after hours", res.Schedule.Description)
	assert.Equal(t, map[string]string{"team": "sales", "region": "us"}, res.Schedule.Tags)
	assert.Empty(t, res.Operations, "overrides are unmanaged")
}

func TestUpdate_ReconcilesOverrides(t *testing.T) {
	// GIVEN: Christmas and New Year exist
	// WHEN:  desired keeps Christmas by name with new hours, drops New Year, adds Easter
	// THEN:  delete, update (adopted id), create, in that order
	svc, _ := newService(t)
	ctx := context.Background()

	s := support()
	s.Overrides = []overrides.Record{holiday("", "Christmas"), holiday("", "New Year")}
	created, err := svc.Create(ctx, s)
	require.NoError(t, err)
	christmasID := created.Overrides[0].ID
	newYearID := created.Overrides[1].ID

	desired := support()
	desired.ID = created.ID
	desired.Overrides = []overrides.Record{
		holiday("", "Easter"),
		holiday("", "Christmas", short),
	}

	res, err := svc.Update(ctx, desired)
	require.NoError(t, err)

	require.Len(t, res.Operations, 3)
	assert.Equal(t, overrides.Delete{ID: newYearID}, res.Operations[0])
	upd, ok := res.Operations[1].(overrides.Update)
	require.True(t, ok)
	assert.Equal(t, christmasID, upd.Record.ID)
	assert.IsType(t, overrides.Create{}, res.Operations[2])
	assert.Equal(t, overrides.Summary{Creates: 1, Updates: 1, Deletes: 1}, res.Summary)
	assert.Equal(t, res.Operations, res.Applied)
	assert.False(t, res.ParentUpdated)

	assert.ElementsMatch(t, []string{"Christmas", "Easter"}, names(res.Schedule.Overrides))

	// Caller's record is untouched by id adoption.
	assert.Empty(t, desired.Overrides[1].ID)

	// Second pass is a no-op.
	again, err := svc.Update(ctx, desired)
	require.NoError(t, err)
	assert.Empty(t, again.Operations)
}

func TestUpdate_EmptyOverridesDeletesAll(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s := support()
	s.Overrides = []overrides.Record{holiday("", "a"), holiday("", "b")}
	created, err := svc.Create(ctx, s)
	require.NoError(t, err)

	desired := support()
	desired.ID = created.ID
	desired.Overrides = []overrides.Record{}

	res, err := svc.Update(ctx, desired)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Deletes)
	assert.Empty(t, res.Schedule.Overrides)
}

func TestUpdate_InstanceIsImmutable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, support())
	require.NoError(t, err)

	desired := support()
	desired.ID = created.ID
	desired.InstanceID = "inst-2"

	_, err = svc.Update(ctx, desired)
	assert.ErrorIs(t, err, schedule.ErrInvalidRequest)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newService(t)
	desired := support()
	desired.ID = "missing"

	_, err := svc.Update(context.Background(), desired)
	assert.True(t, schedule.IsNotFound(err))
}

func TestUpdate_StopsAtFirstFailureAndRecovers(t *testing.T) {
	// GIVEN: the store throttles the first override update
	// THEN:  the delete ran, the update failed, the create never ran
	//        and a second attempt converges
	mem := store.NewMemory()
	cs := &countingStore{Memory: mem}
	svc := schedule.NewService(cs, nil)
	ctx := context.Background()

	s := support()
	s.Overrides = []overrides.Record{holiday("", "Christmas"), holiday("", "New Year")}
	created, err := svc.Create(ctx, s)
	require.NoError(t, err)

	desired := support()
	desired.ID = created.ID
	desired.Overrides = []overrides.Record{holiday("", "Christmas", short), holiday("", "Easter")}

	cs.failOn, cs.failures = "update", 1
	res, err := svc.Update(ctx, desired)
	require.Error(t, err)

	var execErr *overrides.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.Index)
	assert.Len(t, res.Operations, 3)
	assert.Len(t, res.Applied, 1)

	current, err := svc.Read(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Christmas"}, names(current.Overrides))

	res, err = svc.Update(ctx, desired)
	require.NoError(t, err)
	assert.Equal(t, overrides.Summary{Creates: 1, Updates: 1}, res.Summary)
	assert.ElementsMatch(t, []string{"Christmas", "Easter"}, names(res.Schedule.Overrides))
}

// ambiguousStore reports two existing overrides with the same name.
type ambiguousStore struct{ *store.Memory }

func (a ambiguousStore) ListOverrides(context.Context, string, string) (schedule.OverridePage, error) {
	return schedule.OverridePage{Overrides: []overrides.Record{
		holiday("o1", "Christmas"),
		holiday("o2", "Christmas"),
	}}, nil
}

func TestUpdate_RejectsAmbiguousExistingState(t *testing.T) {
	mem := store.NewMemory()
	svc := schedule.NewService(ambiguousStore{mem}, nil)
	ctx := context.Background()

	id, err := mem.CreateSchedule(ctx, support())
	require.NoError(t, err)

	desired := support()
	desired.ID = id
	desired.Overrides = []overrides.Record{holiday("", "Christmas", short)}

	_, err = svc.Update(ctx, desired)
	assert.ErrorIs(t, err, overrides.ErrAmbiguousName)
	assert.True(t, schedule.IsClientError(err))

	var amb *overrides.AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"Christmas"}, amb.Names)
}

// =============================================================================
// PLAN / DELETE / LIST
// =============================================================================

func TestPlan_DoesNotWrite(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s := support()
	s.Overrides = []overrides.Record{holiday("", "Christmas")}
	created, err := svc.Create(ctx, s)
	require.NoError(t, err)

	desired := support()
	desired.ID = created.ID
	desired.Overrides = []overrides.Record{}

	ops, err := svc.Plan(ctx, desired)
	require.NoError(t, err)
	assert.Equal(t, []overrides.Operation{overrides.Delete{ID: created.Overrides[0].ID}}, ops)

	current, err := svc.Read(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, current.Overrides, 1)
}

func TestPlan_UnmanagedOverrides(t *testing.T) {
	svc, _ := newService(t)
	created, err := svc.Create(context.Background(), support())
	require.NoError(t, err)

	desired := support()
	desired.ID = created.ID

	ops, err := svc.Plan(context.Background(), desired)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s := support()
	s.Overrides = []overrides.Record{holiday("x1", "Christmas")}
	created, err := svc.Create(ctx, s)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Read(ctx, created.ID)
	assert.True(t, schedule.IsNotFound(err))
	assert.True(t, schedule.IsNotFound(svc.Delete(ctx, created.ID)))

	// The override id is free again.
	s.Overrides = []overrides.Record{holiday("x1", "Christmas")}
	_, err = svc.Create(ctx, s)
	assert.NoError(t, err)
}

func TestList_Paginates(t *testing.T) {
	svc, mem := newService(t)
	mem.PageSize = 2
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s := support()
		s.Name = fmt.Sprintf("s%d", i)
		_, err := svc.Create(ctx, s)
		require.NoError(t, err)
	}
	other := support()
	other.InstanceID = "inst-2"
	_, err := svc.Create(ctx, other)
	require.NoError(t, err)

	first, err := svc.List(ctx, "inst-1", "")
	require.NoError(t, err)
	require.Len(t, first.Schedules, 2)
	require.NotEmpty(t, first.NextToken)

	second, err := svc.List(ctx, "inst-1", first.NextToken)
	require.NoError(t, err)
	require.Len(t, second.Schedules, 1)
	assert.Equal(t, "s2", second.Schedules[0].Name)
	assert.Empty(t, second.NextToken)

	_, err = svc.List(ctx, "", "")
	assert.ErrorIs(t, err, schedule.ErrInvalidRequest)
	_, err = svc.List(ctx, "inst-1", "garbage")
	assert.ErrorIs(t, err, schedule.ErrInvalidRequest)
}
