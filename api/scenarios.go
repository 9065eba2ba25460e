/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	schedules for demos. Each scenario creates schedules from YAML documents
	and, where useful, applies a follow-up document so the apply-run history
	shows a reconciliation.

AVAILABLE SCENARIOS:

	business-hours:   Weekday support desk, no overrides
	holiday-calendar: Support desk with year-end holiday overrides
	holiday-rollover: Holiday calendar rolled to the next year via update
	overnight-shift:  Slots that run past midnight plus a maintenance window

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Parse scenario documents via factory
 3. Create schedules through the service
 4. Optionally apply a changed document (recorded as an apply run)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "holiday-rollover"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: apply (run recording)
  - factory/schedule.go: Schedule documents
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/schedule-engine/schedule"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "business-hours",
		Name:        "Business Hours",
		Description: "Weekday support desk without overrides",
		Category:    "basic",
	},
	{
		ID:          "holiday-calendar",
		Name:        "Holiday Calendar",
		Description: "Support desk with year-end holiday overrides",
		Category:    "overrides",
	},
	{
		ID:          "holiday-rollover",
		Name:        "Holiday Rollover",
		Description: "Holiday calendar rolled to the next year through an update",
		Category:    "overrides",
	},
	{
		ID:          "overnight-shift",
		Name:        "Overnight Shift",
		Description: "Night operations with slots past midnight and a maintenance window",
		Category:    "basic",
	},
}

const businessHoursYAML = `
instance_id: demo-instance
name: Support Desk
description: First-line support
time_zone: America/New_York
config:
  - {day: MONDAY, start: "09:00", end: "17:00"}
  - {day: TUESDAY, start: "09:00", end: "17:00"}
  - {day: WEDNESDAY, start: "09:00", end: "17:00"}
  - {day: THURSDAY, start: "09:00", end: "17:00"}
  - {day: FRIDAY, start: "09:00", end: "15:00"}
tags:
  team: support
  tier: "1"
`

const holidaysYAML = `
instance_id: demo-instance
name: Support Desk
description: First-line support
time_zone: America/New_York
config:
  - {day: MONDAY, start: "09:00", end: "17:00"}
  - {day: TUESDAY, start: "09:00", end: "17:00"}
  - {day: WEDNESDAY, start: "09:00", end: "17:00"}
  - {day: THURSDAY, start: "09:00", end: "17:00"}
  - {day: FRIDAY, start: "09:00", end: "15:00"}
tags:
  team: support
overrides:
  - name: Christmas Eve
    effective_from: "2025-12-24"
    effective_till: "2025-12-24"
    config:
      - {day: WEDNESDAY, start: "09:00", end: "12:00"}
  - name: Christmas
    effective_from: "2025-12-25"
    effective_till: "2025-12-25"
    config: []
  - name: Boxing Day
    effective_from: "2025-12-26"
    effective_till: "2025-12-26"
    config: []
`

// The rollover keeps Christmas by name, drops Boxing Day, shortens
// Christmas Eve and adds New Year.
const holidaysNextYearYAML = `
instance_id: demo-instance
name: Support Desk
description: First-line support
time_zone: America/New_York
config:
  - {day: MONDAY, start: "09:00", end: "17:00"}
  - {day: TUESDAY, start: "09:00", end: "17:00"}
  - {day: WEDNESDAY, start: "09:00", end: "17:00"}
  - {day: THURSDAY, start: "09:00", end: "17:00"}
  - {day: FRIDAY, start: "09:00", end: "15:00"}
tags:
  team: support
  season: holidays
overrides:
  - name: Christmas Eve
    effective_from: "2026-12-24"
    effective_till: "2026-12-24"
    config:
      - {day: THURSDAY, start: "09:00", end: "11:00"}
  - name: Christmas
    effective_from: "2025-12-25"
    effective_till: "2025-12-25"
    config: []
  - name: New Year
    effective_from: "2027-01-01"
    effective_till: "2027-01-01"
    config: []
`

const overnightYAML = `
instance_id: demo-instance
name: Network Operations
time_zone: Europe/Berlin
config:
  - {day: MONDAY, start: "22:00", end: "06:00"}
  - {day: TUESDAY, start: "22:00", end: "06:00"}
  - {day: WEDNESDAY, start: "22:00", end: "06:00"}
  - {day: THURSDAY, start: "22:00", end: "06:00"}
  - {day: FRIDAY, start: "22:00", end: "06:00"}
tags:
  team: noc
overrides:
  - name: Maintenance Window
    description: Core switch upgrade
    effective_from: "2026-03-14"
    effective_till: "2026-03-15"
    config:
      - {day: SATURDAY, start: "00:00", end: "04:00"}
`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ids, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errUnknownScenario) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "loaded",
		"scenario":  req.ScenarioID,
		"schedules": ids,
	})
}

var errUnknownScenario = errors.New("unknown scenario")

// loadScenario resets the store and loads the scenario, returning the ids
// of the schedules it created.
func (h *Handler) loadScenario(ctx context.Context, id string) ([]string, error) {
	var docs []string
	var follow string
	switch id {
	case "business-hours":
		docs = []string{businessHoursYAML}
	case "holiday-calendar":
		docs = []string{holidaysYAML}
	case "holiday-rollover":
		docs = []string{holidaysYAML}
		follow = holidaysNextYearYAML
	case "overnight-shift":
		docs = []string{overnightYAML}
	default:
		return nil, errUnknownScenario
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset database: %w", err)
	}
	h.currentScenario = ""

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		created, err := h.createFromYAML(ctx, doc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, created.ID)
	}

	if follow != "" {
		desired, err := h.Factory.ParseYAML([]byte(follow))
		if err != nil {
			return nil, err
		}
		desired.ID = ids[0]
		if _, _, err := h.apply(ctx, desired, "scenario", ""); err != nil {
			return nil, fmt.Errorf("failed to apply follow-up document: %w", err)
		}
	}

	h.currentScenario = id
	h.Log.WithField("scenario", id).Info("scenario loaded")
	return ids, nil
}

func (h *Handler) createFromYAML(ctx context.Context, doc string) (*schedule.Schedule, error) {
	desired, err := h.Factory.ParseYAML([]byte(doc))
	if err != nil {
		return nil, err
	}
	return h.Service.Create(ctx, desired)
}
