package overrides

// Resolve classifies one desired record against idx and returns at most one
// operation. ok is false when the matching existing record is already
// identical (no-op).
//
// Matching:
//   - desired.ID set:   claim by id. A miss falls through to Create with the
//     id kept as identity hint; the name is not consulted.
//   - desired.ID empty: claim by name and adopt the existing id.
//
// The returned operation always carries the full desired record.
func Resolve(desired Record, idx *DriftIndex) (op Operation, ok bool) {
	var (
		existing Record
		claimed  bool
	)
	if desired.HasID() {
		existing, claimed = idx.ClaimByID(desired.ID)
	} else {
		existing, claimed = idx.ClaimByName(desired.Name)
		if claimed {
			desired = desired.WithID(existing.ID)
		}
	}

	if !claimed {
		return Create{Record: desired}, true
	}
	if Same(desired, existing) {
		return nil, false
	}
	return Update{Record: desired}, true
}
