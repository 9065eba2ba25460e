/*
handlers.go - HTTP API handlers for the schedule engine

PURPOSE:
  Exposes the schedule service via REST API. Handles HTTP request/response,
  document parsing, and delegates to schedule.Service.

ENDPOINTS:
  Schedules:
    GET    /api/schedules?instance_id=&next_token=  List one page
    POST   /api/schedules                          Create from document
    GET    /api/schedules/{id}                     Read with all overrides
    PUT    /api/schedules/{id}                     Update (records an apply run)
    DELETE /api/schedules/{id}                     Delete
    POST   /api/schedules/{id}/plan                Dry-run override plan

  Runs:
    GET    /api/runs?status=                       Apply-run history

  Scenarios (demo):
    GET    /api/scenarios                          List scenarios
    GET    /api/scenarios/current                  Loaded scenario
    POST   /api/scenarios/load                     Reset and load

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: SQLite store (schedules and apply runs)
  - Service: Create/Read/Update/Delete/List/Plan flows
  - Factory: Document to Schedule conversion

REQUEST FLOW:
  1. Parse HTTP request
  2. Parse the schedule document
  3. Call the service
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid document or forbidden change
  - 404: Schedule or override not found
  - 409: Duplicate name/id, ambiguous stored state, override limit
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Retry sweep over failed apply runs
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/schedule-engine/factory"
	"github.com/warp/schedule-engine/overrides"
	"github.com/warp/schedule-engine/schedule"
	"github.com/warp/schedule-engine/store/sqlite"
)

const maxDocumentBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *schedule.Service
	Factory *factory.ScheduleFactory
	Log     logrus.FieldLogger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:   store,
		Service: schedule.NewService(store, log),
		Factory: factory.NewScheduleFactory(),
		Log:     log,
	}
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns one page of an instance's schedules.
// GET /api/schedules?instance_id=&next_token=
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Service.List(r.Context(), q.Get("instance_id"), q.Get("next_token"))
	if err != nil {
		writeServiceError(w, "Failed to list schedules", err)
		return
	}

	dto := SchedulePageDTO{Schedules: make([]ScheduleDTO, len(page.Schedules)), NextToken: page.NextToken}
	for i, s := range page.Schedules {
		dto.Schedules[i] = toScheduleDTO(h.Factory, s)
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateSchedule creates a schedule and its overrides.
// POST /api/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	desired, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}

	created, err := h.Service.Create(r.Context(), desired)
	if err != nil {
		writeServiceError(w, "Failed to create schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleDTO(h.Factory, *created))
}

// GetSchedule returns a schedule with all its overrides.
// GET /api/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Read(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to read schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(h.Factory, *s))
}

// UpdateSchedule reconciles the stored schedule with the document.
// PUT /api/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	desired, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if desired.ID != "" && desired.ID != id {
		writeError(w, http.StatusBadRequest, "Document id does not match URL", nil)
		return
	}
	desired.ID = id

	res, run, err := h.apply(r.Context(), desired, "api", "")
	if err != nil {
		status, code := errorStatus(err)
		details := map[string]any{
			"reason":  err.Error(),
			"run_id":  run.ID,
			"applied": run.Applied,
		}
		var execErr *overrides.ExecutionError
		if errors.As(err, &execErr) {
			details["failed_operation"] = execErr.Op.String()
		}
		writeJSON(w, status, ErrorResponse{Error: "Failed to update schedule", Code: code, Details: details})
		return
	}

	writeJSON(w, http.StatusOK, h.updateResponse(res, run))
}

// DeleteSchedule deletes a schedule and its overrides.
// DELETE /api/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "Failed to delete schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlanSchedule returns the override operations an update would run.
// POST /api/schedules/{id}/plan
func (h *Handler) PlanSchedule(w http.ResponseWriter, r *http.Request) {
	desired, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	desired.ID = chi.URLParam(r, "id")

	resp, err := h.Plan(r.Context(), desired)
	if err != nil {
		writeServiceError(w, "Failed to plan schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// APPLY RUN HANDLERS
// =============================================================================

// ListApplyRuns returns apply runs, newest first.
// GET /api/runs?status=
func (h *Handler) ListApplyRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.GetApplyRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]ApplyRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toApplyRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// APPLY
// =============================================================================

// Plan returns the override operations an update with desired would run.
func (h *Handler) Plan(ctx context.Context, desired schedule.Schedule) (PlanResponse, error) {
	ops, err := h.Service.Plan(ctx, desired)
	if err != nil {
		return PlanResponse{}, err
	}
	return PlanResponse{
		Operations: toOperationDTOs(h.Factory, ops),
		Summary:    overrides.Summarize(ops),
	}, nil
}

// Apply updates the schedule to desired and records the run under trigger.
// On failure the response still carries the run id.
func (h *Handler) Apply(ctx context.Context, desired schedule.Schedule, trigger string) (UpdateResponse, error) {
	res, run, err := h.apply(ctx, desired, trigger, "")
	if err != nil {
		return UpdateResponse{RunID: run.ID}, err
	}
	return h.updateResponse(res, run), nil
}

func (h *Handler) updateResponse(res *schedule.UpdateResult, run sqlite.ApplyRun) UpdateResponse {
	return UpdateResponse{
		Schedule:      toScheduleDTO(h.Factory, *res.Schedule),
		RunID:         run.ID,
		Skipped:       res.Skipped(),
		ParentUpdated: res.ParentUpdated,
		TagsAdded:     res.TagsAdded,
		TagsRemoved:   res.TagsRemoved,
		Operations:    toOperationDTOs(h.Factory, res.Operations),
		Summary:       res.Summary,
	}
}

// apply runs Service.Update and records the attempt. A failure caused by the
// request or the stored state is recorded as rejected and never retried.
func (h *Handler) apply(ctx context.Context, desired schedule.Schedule, trigger, retryOf string) (*schedule.UpdateResult, sqlite.ApplyRun, error) {
	desiredJSON, err := json.Marshal(h.Factory.ToDoc(desired))
	if err != nil {
		return nil, sqlite.ApplyRun{}, err
	}

	// The run record outlives a canceled request.
	saveCtx := context.WithoutCancel(ctx)
	started := time.Now().UTC()
	run := sqlite.ApplyRun{
		ID:          uuid.Must(uuid.NewV7()).String(),
		ScheduleID:  desired.ID,
		Trigger:     trigger,
		Status:      sqlite.RunRunning,
		DesiredJSON: string(desiredJSON),
		RetryOf:     retryOf,
		StartedAt:   &started,
		CreatedAt:   started,
	}
	if err := h.Store.SaveApplyRun(saveCtx, run); err != nil {
		return nil, run, fmt.Errorf("failed to save run record: %w", err)
	}

	res, err := h.Service.Update(ctx, desired)

	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if res != nil {
		run.Creates = res.Summary.Creates
		run.Updates = res.Summary.Updates
		run.Deletes = res.Summary.Deletes
		run.Applied = len(res.Applied)
	}
	switch {
	case err == nil:
		run.Status = sqlite.RunCompleted
	case schedule.IsClientError(err) || schedule.IsNotFound(err):
		run.Status = sqlite.RunRejected
		run.Error = err.Error()
	default:
		run.Status = sqlite.RunFailed
		run.Error = err.Error()
	}

	if saveErr := h.Store.SaveApplyRun(saveCtx, run); saveErr != nil {
		h.Log.WithError(saveErr).WithField("run_id", run.ID).Warn("failed to update run record")
	}
	return res, run, err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decodeSchedule(w http.ResponseWriter, r *http.Request) (schedule.Schedule, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return schedule.Schedule{}, false
	}
	desired, err := h.Factory.ParseJSON(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schedule document", err)
		return schedule.Schedule{}, false
	}
	return desired, true
}

// errorStatus maps service errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case schedule.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, schedule.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case schedule.IsClientError(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeServiceError(w http.ResponseWriter, message string, err error) {
	status, code := errorStatus(err)
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
