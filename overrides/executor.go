package overrides

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// EXECUTOR - applies a plan, in order, stopping at the first failure
// =============================================================================

// Writer is the store-side surface the executor drives.
type Writer interface {
	// CreateOverride stores rec and returns the id the store assigned.
	// idHint, when non-empty, asks the store to use that id.
	CreateOverride(ctx context.Context, scheduleID string, rec Record, idHint string) (string, error)
	UpdateOverride(ctx context.Context, scheduleID string, rec Record) error
	DeleteOverride(ctx context.Context, scheduleID, overrideID string) error
}

// Result is what an execution got done before it finished or failed.
type Result struct {
	Applied []Operation
	// Created maps each applied Create (by position in Applied) to its new id.
	Created map[int]string
}

// ExecutionError reports the operation that failed. Operations before Index
// were applied; the failed one and everything after were not.
type ExecutionError struct {
	Index int
	Op    Operation
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("operation %d (%s) failed: %v", e.Index, e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor applies operations through a Writer.
type Executor struct {
	Writer Writer
	Log    logrus.FieldLogger
}

func NewExecutor(w Writer, log logrus.FieldLogger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{Writer: w, Log: log}
}

// Execute runs ops sequentially. There is no partial-application recovery:
// on failure the caller re-reads existing state and plans again.
func (e *Executor) Execute(ctx context.Context, scheduleID string, ops []Operation) (Result, error) {
	res := Result{Created: make(map[int]string)}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, &ExecutionError{Index: i, Op: op, Err: err}
		}

		log := e.Log.WithFields(logrus.Fields{
			"schedule_id": scheduleID,
			"op":          op.Kind().String(),
		})

		var err error
		switch op := op.(type) {
		case Create:
			var id string
			id, err = e.Writer.CreateOverride(ctx, scheduleID, op.Record, op.IDHint())
			if err == nil {
				res.Created[len(res.Applied)] = id
				log = log.WithField("override_id", id)
			}
		case Update:
			log = log.WithField("override_id", op.Record.ID)
			err = e.Writer.UpdateOverride(ctx, scheduleID, op.Record)
		case Delete:
			log = log.WithField("override_id", op.ID)
			err = e.Writer.DeleteOverride(ctx, scheduleID, op.ID)
		default:
			err = fmt.Errorf("unknown operation %T", op)
		}

		if err != nil {
			log.WithError(err).Warn("override operation failed")
			return res, &ExecutionError{Index: i, Op: op, Err: err}
		}
		log.Debug("override operation applied")
		res.Applied = append(res.Applied, op)
	}
	return res, nil
}
