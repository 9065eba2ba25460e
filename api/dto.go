/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers
  Request bodies are factory.ScheduleDoc documents.

TYPES:
  Schedule:
    ScheduleDTO (wraps factory.ScheduleDoc), SchedulePageDTO

  Reconciliation:
    OperationDTO, PlanResponse, UpdateResponse

  Runs:
    ApplyRunDTO

  Scenarios:
    ScenarioDTO

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: ScheduleDoc type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/schedule-engine/factory"
	"github.com/warp/schedule-engine/hours"
	"github.com/warp/schedule-engine/overrides"
	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ScheduleDTO is a schedule document plus computed fields.
type ScheduleDTO struct {
	factory.ScheduleDoc
	TotalHours decimal.Decimal `json:"total_hours"`
}

// SchedulePageDTO is one page of an instance's schedules.
type SchedulePageDTO struct {
	Schedules []ScheduleDTO `json:"schedules"`
	NextToken string        `json:"next_token,omitempty"`
}

// OperationDTO is one planned or applied override change.
type OperationDTO struct {
	Kind     string               `json:"kind"`
	ID       string               `json:"id,omitempty"`
	IDHint   string               `json:"id_hint,omitempty"`
	Override *factory.OverrideDoc `json:"override,omitempty"`
}

// PlanResponse is the result of a dry run.
type PlanResponse struct {
	Operations []OperationDTO    `json:"operations"`
	Summary    overrides.Summary `json:"summary"`
}

// UpdateResponse describes what an update wrote.
type UpdateResponse struct {
	Schedule      ScheduleDTO       `json:"schedule"`
	RunID         string            `json:"run_id"`
	Skipped       bool              `json:"skipped"`
	ParentUpdated bool              `json:"parent_updated"`
	TagsAdded     map[string]string `json:"tags_added,omitempty"`
	TagsRemoved   []string          `json:"tags_removed,omitempty"`
	Operations    []OperationDTO    `json:"operations"`
	Summary       overrides.Summary `json:"summary"`
}

// ApplyRunDTO represents an apply run in API responses.
type ApplyRunDTO struct {
	ID          string `json:"id"`
	ScheduleID  string `json:"schedule_id"`
	Trigger     string `json:"trigger"`
	Status      string `json:"status"`
	Creates     int    `json:"creates"`
	Updates     int    `json:"updates"`
	Deletes     int    `json:"deletes"`
	Applied     int    `json:"applied"`
	Error       string `json:"error,omitempty"`
	RetryOf     string `json:"retry_of,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toScheduleDTO(f *factory.ScheduleFactory, s schedule.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ScheduleDoc: f.ToDoc(s),
		TotalHours:  hours.TotalHours(s.Config),
	}
}

func toOperationDTOs(f *factory.ScheduleFactory, ops []overrides.Operation) []OperationDTO {
	dtos := make([]OperationDTO, 0, len(ops))
	for _, op := range ops {
		dto := OperationDTO{Kind: op.Kind().String()}
		switch op := op.(type) {
		case overrides.Create:
			doc := f.ToOverrideDoc(op.Record)
			doc.ID = ""
			dto.IDHint = op.IDHint()
			dto.Override = &doc
		case overrides.Update:
			doc := f.ToOverrideDoc(op.Record)
			dto.ID = op.Record.ID
			dto.Override = &doc
		case overrides.Delete:
			dto.ID = op.ID
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

func toApplyRunDTO(r sqlite.ApplyRun) ApplyRunDTO {
	dto := ApplyRunDTO{
		ID:         r.ID,
		ScheduleID: r.ScheduleID,
		Trigger:    r.Trigger,
		Status:     r.Status,
		Creates:    r.Creates,
		Updates:    r.Updates,
		Deletes:    r.Deletes,
		Applied:    r.Applied,
		Error:      r.Error,
		RetryOf:    r.RetryOf,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
	if r.StartedAt != nil {
		dto.StartedAt = r.StartedAt.Format(time.RFC3339)
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}
