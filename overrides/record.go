/*
Package overrides reconciles a schedule's override entries.

PURPOSE:
  Given the override entries a caller wants (desired) and the entries the
  store currently holds (existing), produce the smallest ordered list of
  create/update/delete operations that turns existing into desired, without
  ever deleting or duplicating an entry that cannot be proven obsolete.

PIPELINE:
  desired + existing
      -> DriftIndex (existing by id and by name, tracks unclaimed)
      -> Resolve each desired record (Create / Update / no-op)
      -> leftover orphans become Deletes
      -> stable sort: Delete < Update < Create

IDENTITY:
  - A desired record with an id is matched by id only.
  - A desired record without an id is matched by name and adopts the
    existing record's id. The caller's value is never modified; Resolve
    returns a copy.
  - An id that matches nothing is carried on the Create as an identity hint.

PURITY:
  Plan performs no I/O, holds no locks and keeps no state between calls.
  Executing the operations is the Executor's job (executor.go).

SEE ALSO:
  - index.go:    DriftIndex
  - resolve.go:  Per-record classification
  - plan.go:     Ordering and orphan collection
  - executor.go: Sequential application against a store
*/
package overrides

import "github.com/warp/schedule-engine/hours"

// Record is one override entry, desired or existing.
// An empty ID means the identifier is not known.
type Record struct {
	ID            string       `json:"id,omitempty"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	EffectiveFrom string       `json:"effective_from"`
	EffectiveTill string       `json:"effective_till"`
	Config        []hours.Slot `json:"config"`
}

func (r Record) HasID() bool { return r.ID != "" }

// WithID returns a copy of r carrying id.
func (r Record) WithID(id string) Record {
	r.ID = id
	return r
}

// Same reports whether a and b are identical for drift purposes: every
// scalar field equal and Config equal as a set.
func Same(a, b Record) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.EffectiveFrom == b.EffectiveFrom &&
		a.EffectiveTill == b.EffectiveTill &&
		hours.SameSlots(a.Config, b.Config)
}
