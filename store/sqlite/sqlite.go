/*
Package sqlite provides a SQLite-backed implementation of the schedule store.

PURPOSE:
  Implements schedule.Store (schedules, tags, overrides) plus the apply-run
  log the API and the retry sweep use. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  schedule.Store:   Schedules, tags, paginated override listing
  overrides.Writer: Override create / update / delete (via schedule.Store)

KEY TABLES:
  schedules:     Parent resources, config stored as JSON
  schedule_tags: Key/value tags, one row per key
  overrides:     Override entries, UNIQUE(schedule_id, name)
  apply_runs:    One row per update attempt

ORDERING:
  Listings follow insertion order (rowid), so page tokens are stable while
  nothing is inserted concurrently.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/schedules.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := schedule.NewService(store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/store.go:        Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/schedule-engine/hours"
	"github.com/warp/schedule-engine/overrides"
	"github.com/warp/schedule-engine/schedule"
)

// Store implements schedule.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	pageSize     int
	maxOverrides int
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:           db,
		pageSize:     schedule.DefaultPageSize,
		maxOverrides: schedule.DefaultMaxOverrides,
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// SetPageSize sets the page size of ListSchedules and ListOverrides.
func (s *Store) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.pageSize = n
	}
}

// SetMaxOverrides sets how many overrides one schedule may hold.
func (s *Store) SetMaxOverrides(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxOverrides = n
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Schedules (parent resources)
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		time_zone TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_instance
		ON schedules(instance_id);

	-- Tags
	CREATE TABLE IF NOT EXISTS schedule_tags (
		schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		tag_key TEXT NOT NULL,
		tag_value TEXT NOT NULL,
		PRIMARY KEY (schedule_id, tag_key)
	);

	-- Overrides
	CREATE TABLE IF NOT EXISTS overrides (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT,
		effective_from TEXT NOT NULL,
		effective_till TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(schedule_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_overrides_schedule
		ON overrides(schedule_id);

	-- Apply runs (one per update attempt)
	CREATE TABLE IF NOT EXISTS apply_runs (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		creates INTEGER DEFAULT 0,
		updates INTEGER DEFAULT 0,
		deletes INTEGER DEFAULT 0,
		applied INTEGER DEFAULT 0,
		error TEXT,
		desired_json TEXT NOT NULL,
		retry_of TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_apply_runs_status
		ON apply_runs(status);
	CREATE INDEX IF NOT EXISTS idx_apply_runs_schedule
		ON apply_runs(schedule_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn in a database transaction. Callers hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

// CreateSchedule inserts the schedule and its tags in one transaction.
func (s *Store) CreateSchedule(ctx context.Context, sch schedule.Schedule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch.ID == "" {
		sch.ID = uuid.Must(uuid.NewV7()).String()
	}
	configJSON, err := json.Marshal(orEmpty(sch.Config))
	if err != nil {
		return "", err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (id, instance_id, name, description, time_zone, config_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sch.ID, sch.InstanceID, sch.Name, nullString(sch.Description), sch.TimeZone, string(configJSON), now, now)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("schedule %s: %w", sch.ID, schedule.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert schedule: %w", err)
		}
		return putTags(ctx, tx, sch.ID, sch.Tags)
	})
	if err != nil {
		return "", err
	}
	return sch.ID, nil
}

// GetSchedule returns the schedule with its tags. Overrides stay nil.
func (s *Store) GetSchedule(ctx context.Context, id string) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, instance_id, name, description, time_zone, config_json
		FROM schedules WHERE id = ?
	`, id)
	sch, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", id, schedule.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	sch.Tags, err = s.loadTags(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sch, nil
}

// UpdateSchedule writes name, description, time zone and config.
func (s *Store) UpdateSchedule(ctx context.Context, sch schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(orEmpty(sch.Config))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET name = ?, description = ?, time_zone = ?, config_json = ?, updated_at = ?
		WHERE id = ?
	`, sch.Name, nullString(sch.Description), sch.TimeZone, string(configJSON),
		time.Now().UTC().Format(time.RFC3339), sch.ID)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return expectRow(res, "schedule", sch.ID)
}

// DeleteSchedule removes the schedule; tags and overrides cascade.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return expectRow(res, "schedule", id)
}

// ListSchedules returns one page of an instance's schedules with their tags.
func (s *Store) ListSchedules(ctx context.Context, instanceID, pageToken string) (schedule.SchedulePage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset, err := schedule.ParseToken(pageToken)
	if err != nil {
		return schedule.SchedulePage{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, instance_id, name, description, time_zone, config_json
		FROM schedules
		WHERE instance_id = ?
		ORDER BY rowid
		LIMIT ? OFFSET ?
	`, instanceID, s.pageSize+1, offset)
	if err != nil {
		return schedule.SchedulePage{}, err
	}

	var page schedule.SchedulePage
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			rows.Close()
			return schedule.SchedulePage{}, err
		}
		page.Schedules = append(page.Schedules, sch)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return schedule.SchedulePage{}, err
	}

	if len(page.Schedules) > s.pageSize {
		page.Schedules = page.Schedules[:s.pageSize]
		page.NextToken = schedule.PageToken(offset + s.pageSize)
	}

	// Tags are loaded once the cursor is closed: the store runs on a
	// single connection.
	for i := range page.Schedules {
		page.Schedules[i].Tags, err = s.loadTags(ctx, page.Schedules[i].ID)
		if err != nil {
			return schedule.SchedulePage{}, err
		}
	}
	return page, nil
}

// TagSchedule adds or overwrites tags.
func (s *Store) TagSchedule(ctx context.Context, id string, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := scheduleExists(ctx, tx, id); err != nil {
			return err
		}
		return putTags(ctx, tx, id, tags)
	})
}

// UntagSchedule removes tags by key. Unknown keys are ignored.
func (s *Store) UntagSchedule(ctx context.Context, id string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := scheduleExists(ctx, tx, id); err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM schedule_tags WHERE schedule_id = ? AND tag_key = ?`, id, k); err != nil {
				return fmt.Errorf("failed to untag schedule: %w", err)
			}
		}
		return nil
	})
}

func putTags(ctx context.Context, db execer, id string, tags map[string]string) error {
	for k, v := range tags {
		_, err := db.ExecContext(ctx, `
			INSERT INTO schedule_tags (schedule_id, tag_key, tag_value) VALUES (?, ?, ?)
			ON CONFLICT(schedule_id, tag_key) DO UPDATE SET tag_value = excluded.tag_value
		`, id, k, v)
		if err != nil {
			return fmt.Errorf("failed to tag schedule: %w", err)
		}
	}
	return nil
}

func (s *Store) loadTags(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_key, tag_value FROM schedule_tags WHERE schedule_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags map[string]string
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if tags == nil {
			tags = make(map[string]string)
		}
		tags[k] = v
	}
	return tags, rows.Err()
}

func scheduleExists(ctx context.Context, tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("schedule %s: %w", id, schedule.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (schedule.Schedule, error) {
	var sch schedule.Schedule
	var description sql.NullString
	var configJSON string
	if err := row.Scan(&sch.ID, &sch.InstanceID, &sch.Name, &description, &sch.TimeZone, &configJSON); err != nil {
		return sch, err
	}
	sch.Description = description.String
	if err := json.Unmarshal([]byte(configJSON), &sch.Config); err != nil {
		return sch, fmt.Errorf("schedule %s: bad config: %w", sch.ID, err)
	}
	return sch, nil
}

// =============================================================================
// OVERRIDE STORE
// =============================================================================

// ListOverrides returns one page of overrides in insertion order.
func (s *Store) ListOverrides(ctx context.Context, scheduleID, pageToken string) (schedule.OverridePage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset, err := schedule.ParseToken(pageToken)
	if err != nil {
		return schedule.OverridePage{}, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules WHERE id = ?`, scheduleID).Scan(&n); err != nil {
		return schedule.OverridePage{}, err
	}
	if n == 0 {
		return schedule.OverridePage{}, fmt.Errorf("schedule %s: %w", scheduleID, schedule.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, effective_from, effective_till, config_json
		FROM overrides
		WHERE schedule_id = ?
		ORDER BY rowid
		LIMIT ? OFFSET ?
	`, scheduleID, s.pageSize+1, offset)
	if err != nil {
		return schedule.OverridePage{}, err
	}
	defer rows.Close()

	var page schedule.OverridePage
	for rows.Next() {
		var r overrides.Record
		var description sql.NullString
		var configJSON string
		if err := rows.Scan(&r.ID, &r.Name, &description, &r.EffectiveFrom, &r.EffectiveTill, &configJSON); err != nil {
			return schedule.OverridePage{}, err
		}
		r.Description = description.String
		if err := json.Unmarshal([]byte(configJSON), &r.Config); err != nil {
			return schedule.OverridePage{}, fmt.Errorf("override %s: bad config: %w", r.ID, err)
		}
		page.Overrides = append(page.Overrides, r)
	}
	if err := rows.Err(); err != nil {
		return schedule.OverridePage{}, err
	}

	if len(page.Overrides) > s.pageSize {
		page.Overrides = page.Overrides[:s.pageSize]
		page.NextToken = schedule.PageToken(offset + s.pageSize)
	}
	return page, nil
}

// CreateOverride inserts rec, using idHint as its id when given.
func (s *Store) CreateOverride(ctx context.Context, scheduleID string, rec overrides.Record, idHint string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := idHint
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	configJSON, err := json.Marshal(orEmpty(rec.Config))
	if err != nil {
		return "", err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := scheduleExists(ctx, tx, scheduleID); err != nil {
			return err
		}
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM overrides WHERE schedule_id = ?`, scheduleID).Scan(&count); err != nil {
			return err
		}
		if count >= s.maxOverrides {
			return fmt.Errorf("schedule %s holds %d overrides: %w", scheduleID, count, schedule.ErrLimitExceeded)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO overrides (id, schedule_id, name, description, effective_from, effective_till,
				config_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, scheduleID, rec.Name, nullString(rec.Description), rec.EffectiveFrom, rec.EffectiveTill,
			string(configJSON), now, now)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("override %s (%q): %w", id, rec.Name, schedule.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert override: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateOverride overwrites every field of the override with rec.ID.
func (s *Store) UpdateOverride(ctx context.Context, scheduleID string, rec overrides.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(orEmpty(rec.Config))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE overrides
		SET name = ?, description = ?, effective_from = ?, effective_till = ?, config_json = ?, updated_at = ?
		WHERE id = ? AND schedule_id = ?
	`, rec.Name, nullString(rec.Description), rec.EffectiveFrom, rec.EffectiveTill, string(configJSON),
		time.Now().UTC().Format(time.RFC3339), rec.ID, scheduleID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("override name %q: %w", rec.Name, schedule.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update override: %w", err)
	}
	return expectRow(res, "override", rec.ID)
}

func (s *Store) DeleteOverride(ctx context.Context, scheduleID, overrideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM overrides WHERE id = ? AND schedule_id = ?`, overrideID, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	return expectRow(res, "override", overrideID)
}

// =============================================================================
// APPLY RUNS STORE
// =============================================================================

const (
	RunRunning    = "running"
	RunCompleted  = "completed"
	RunFailed     = "failed"   // may be retried
	RunRejected   = "rejected" // request or stored state is wrong, never retried
	RunRetried    = "retried"
	RunSuperseded = "superseded" // failed, but a newer run for the schedule exists
)

// ApplyRun records one attempt at bringing a schedule to a desired state.
type ApplyRun struct {
	ID          string
	ScheduleID  string
	Trigger     string // api, retry
	Status      string
	Creates     int
	Updates     int
	Deletes     int
	Applied     int
	Error       string
	DesiredJSON string
	RetryOf     string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// SaveApplyRun inserts or updates a run.
func (s *Store) SaveApplyRun(ctx context.Context, r ApplyRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO apply_runs (id, schedule_id, triggered_by, status, creates, updates, deletes, applied,
			error, desired_json, retry_of, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			creates = excluded.creates,
			updates = excluded.updates,
			deletes = excluded.deletes,
			applied = excluded.applied,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	var startedAt, completedAt *string
	if r.StartedAt != nil {
		s := r.StartedAt.UTC().Format(runTimeFormat)
		startedAt = &s
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.UTC().Format(runTimeFormat)
		completedAt = &s
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ScheduleID, r.Trigger, r.Status, r.Creates, r.Updates, r.Deletes, r.Applied,
		nullString(r.Error), r.DesiredJSON, nullString(r.RetryOf),
		startedAt, completedAt, r.CreatedAt.UTC().Format(runTimeFormat),
	)
	return err
}

// GetApplyRuns returns runs, newest first, optionally filtered by status.
func (s *Store) GetApplyRuns(ctx context.Context, status string) ([]ApplyRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, schedule_id, triggered_by, status, creates, updates, deletes, applied,
			error, desired_json, retry_of, started_at, completed_at, created_at
		FROM apply_runs
	`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ApplyRun
	for rows.Next() {
		var r ApplyRun
		var errText, retryOf, startedAt, completedAt, createdAt sql.NullString
		if err := rows.Scan(
			&r.ID, &r.ScheduleID, &r.Trigger, &r.Status, &r.Creates, &r.Updates, &r.Deletes, &r.Applied,
			&errText, &r.DesiredJSON, &retryOf, &startedAt, &completedAt, &createdAt,
		); err != nil {
			return nil, err
		}

		r.Error = errText.String
		r.RetryOf = retryOf.String
		r.CreatedAt, _ = time.Parse(runTimeFormat, createdAt.String)
		if startedAt.Valid {
			t, _ := time.Parse(runTimeFormat, startedAt.String)
			r.StartedAt = &t
		}
		if completedAt.Valid {
			t, _ := time.Parse(runTimeFormat, completedAt.String)
			r.CompletedAt = &t
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"apply_runs", "overrides", "schedule_tags", "schedules"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

// runTimeFormat has fixed width so run timestamps sort as text.
const runTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func orEmpty(slots []hours.Slot) []hours.Slot {
	if slots == nil {
		return []hours.Slot{}
	}
	return slots
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, schedule.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
