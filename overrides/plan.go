package overrides

import "sort"

// =============================================================================
// PLANNER - full reconciliation pass
// =============================================================================

// Plan returns the operations that turn existing into desired.
//
// Order: every Delete first (existing-list order), then Updates, then
// Creates, the latter two in desired-list order. Deletes run first so a
// freed name can be reused by a Create or an Update without a transient
// uniqueness conflict at the store.
//
// nil slices are treated as empty. A desired id that appears twice claims the
// existing record once; the repeat becomes a Create.
func Plan(desired, existing []Record) []Operation {
	idx := NewDriftIndex(existing)

	ops := make([]Operation, 0, len(desired))
	for _, d := range desired {
		if op, ok := Resolve(d, idx); ok {
			ops = append(ops, op)
		}
	}
	for _, orphan := range idx.RemainingOrphans() {
		ops = append(ops, Delete{ID: orphan.ID})
	}

	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Kind() < ops[j].Kind()
	})
	return ops
}
