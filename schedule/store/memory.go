// Package store provides an in-memory schedule.Store.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/schedule-engine/overrides"
	"github.com/warp/schedule-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	schedules map[string]*entry
	order     []string
	owners    map[string]string // override id -> schedule id

	// PageSize and MaxOverrides may be changed before first use.
	PageSize     int
	MaxOverrides int
}

type entry struct {
	schedule  schedule.Schedule
	overrides []overrides.Record
}

func NewMemory() *Memory {
	return &Memory{
		schedules:    make(map[string]*entry),
		owners:       make(map[string]string),
		PageSize:     schedule.DefaultPageSize,
		MaxOverrides: schedule.DefaultMaxOverrides,
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (m *Memory) CreateSchedule(_ context.Context, s schedule.Schedule) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = newID()
	}
	if _, ok := m.schedules[s.ID]; ok {
		return "", fmt.Errorf("schedule %s: %w", s.ID, schedule.ErrAlreadyExists)
	}
	s.Config = slices.Clone(s.Config)
	s.Tags = maps.Clone(s.Tags)
	s.Overrides = nil
	m.schedules[s.ID] = &entry{schedule: s}
	m.order = append(m.order, s.ID)
	return s.ID, nil
}

func (m *Memory) GetSchedule(_ context.Context, id string) (*schedule.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	s := cloneSchedule(e.schedule)
	return &s, nil
}

func (m *Memory) UpdateSchedule(_ context.Context, s schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(s.ID)
	if err != nil {
		return err
	}
	e.schedule.Name = s.Name
	e.schedule.Description = s.Description
	e.schedule.TimeZone = s.TimeZone
	e.schedule.Config = slices.Clone(s.Config)
	return nil
}

func (m *Memory) DeleteSchedule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	for _, o := range e.overrides {
		delete(m.owners, o.ID)
	}
	delete(m.schedules, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

func (m *Memory) ListSchedules(_ context.Context, instanceID, pageToken string) (schedule.SchedulePage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offset, err := schedule.ParseToken(pageToken)
	if err != nil {
		return schedule.SchedulePage{}, err
	}
	var matching []schedule.Schedule
	for _, id := range m.order {
		if s := m.schedules[id].schedule; s.InstanceID == instanceID {
			matching = append(matching, cloneSchedule(s))
		}
	}
	items, next := page(matching, offset, m.PageSize)
	return schedule.SchedulePage{Schedules: items, NextToken: next}, nil
}

func (m *Memory) TagSchedule(_ context.Context, id string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if e.schedule.Tags == nil {
		e.schedule.Tags = make(map[string]string, len(tags))
	}
	maps.Copy(e.schedule.Tags, tags)
	return nil
}

func (m *Memory) UntagSchedule(_ context.Context, id string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(e.schedule.Tags, k)
	}
	return nil
}

// =============================================================================
// OVERRIDES
// =============================================================================

func (m *Memory) ListOverrides(_ context.Context, scheduleID, pageToken string) (schedule.OverridePage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.lookup(scheduleID)
	if err != nil {
		return schedule.OverridePage{}, err
	}
	offset, err := schedule.ParseToken(pageToken)
	if err != nil {
		return schedule.OverridePage{}, err
	}
	all := make([]overrides.Record, len(e.overrides))
	for i, o := range e.overrides {
		all[i] = cloneRecord(o)
	}
	items, next := page(all, offset, m.PageSize)
	return schedule.OverridePage{Overrides: items, NextToken: next}, nil
}

func (m *Memory) CreateOverride(_ context.Context, scheduleID string, rec overrides.Record, idHint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(scheduleID)
	if err != nil {
		return "", err
	}
	if len(e.overrides) >= m.MaxOverrides {
		return "", fmt.Errorf("schedule %s holds %d overrides: %w", scheduleID, len(e.overrides), schedule.ErrLimitExceeded)
	}
	if e.nameTaken(rec.Name, "") {
		return "", fmt.Errorf("override name %q: %w", rec.Name, schedule.ErrAlreadyExists)
	}
	rec.ID = idHint
	if rec.ID == "" {
		rec.ID = newID()
	} else if _, taken := m.owners[rec.ID]; taken {
		return "", fmt.Errorf("override %s: %w", rec.ID, schedule.ErrAlreadyExists)
	}
	e.overrides = append(e.overrides, cloneRecord(rec))
	m.owners[rec.ID] = scheduleID
	return rec.ID, nil
}

func (m *Memory) UpdateOverride(_ context.Context, scheduleID string, rec overrides.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(scheduleID)
	if err != nil {
		return err
	}
	i := e.indexOf(rec.ID)
	if i < 0 {
		return fmt.Errorf("override %s: %w", rec.ID, schedule.ErrNotFound)
	}
	if e.nameTaken(rec.Name, rec.ID) {
		return fmt.Errorf("override name %q: %w", rec.Name, schedule.ErrAlreadyExists)
	}
	e.overrides[i] = cloneRecord(rec)
	return nil
}

func (m *Memory) DeleteOverride(_ context.Context, scheduleID, overrideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(scheduleID)
	if err != nil {
		return err
	}
	i := e.indexOf(overrideID)
	if i < 0 {
		return fmt.Errorf("override %s: %w", overrideID, schedule.ErrNotFound)
	}
	e.overrides = slices.Delete(e.overrides, i, i+1)
	delete(m.owners, overrideID)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Memory) lookup(id string) (*entry, error) {
	e, ok := m.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, schedule.ErrNotFound)
	}
	return e, nil
}

func (e *entry) indexOf(id string) int {
	return slices.IndexFunc(e.overrides, func(o overrides.Record) bool { return o.ID == id })
}

// nameTaken reports whether another override than except uses name.
func (e *entry) nameTaken(name, except string) bool {
	return slices.ContainsFunc(e.overrides, func(o overrides.Record) bool {
		return o.Name == name && o.ID != except
	})
}

func page[T any](all []T, offset, size int) ([]T, string) {
	if size <= 0 {
		size = schedule.DefaultPageSize
	}
	if offset >= len(all) {
		return nil, ""
	}
	end := min(offset+size, len(all))
	next := ""
	if end < len(all) {
		next = schedule.PageToken(end)
	}
	return all[offset:end], next
}

func cloneSchedule(s schedule.Schedule) schedule.Schedule {
	s.Config = slices.Clone(s.Config)
	s.Tags = maps.Clone(s.Tags)
	s.Overrides = nil
	return s
}

func cloneRecord(r overrides.Record) overrides.Record {
	r.Config = slices.Clone(r.Config)
	return r
}
