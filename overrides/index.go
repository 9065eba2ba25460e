package overrides

// =============================================================================
// DRIFT INDEX - existing records by id and by name, plus claim tracking
// =============================================================================

// DriftIndex indexes existing records for O(1) lookup and tracks which of
// them have been claimed by a desired record. Each existing record can be
// claimed at most once, through either key.
//
// Records are addressed by their position in the existing list, so orphans
// come back in input order.
type DriftIndex struct {
	records []Record
	claimed []bool
	byID    map[string]int
	byName  map[string]int

	dupIDs   []string
	dupNames []string
}

// NewDriftIndex builds an index over existing. When two existing records share
// an id or a name, the later one wins the key; the collision is reported by
// Ambiguous.
func NewDriftIndex(existing []Record) *DriftIndex {
	idx := &DriftIndex{
		records: existing,
		claimed: make([]bool, len(existing)),
		byID:    make(map[string]int, len(existing)),
		byName:  make(map[string]int, len(existing)),
	}
	for i, r := range existing {
		if r.ID != "" {
			if _, dup := idx.byID[r.ID]; dup {
				idx.dupIDs = append(idx.dupIDs, r.ID)
			}
			idx.byID[r.ID] = i
		}
		if _, dup := idx.byName[r.Name]; dup {
			idx.dupNames = append(idx.dupNames, r.Name)
		}
		idx.byName[r.Name] = i
	}
	return idx
}

// ClaimByID returns the unclaimed existing record with this id and marks it claimed.
func (idx *DriftIndex) ClaimByID(id string) (Record, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Record{}, false
	}
	return idx.claim(i)
}

// ClaimByName returns the unclaimed existing record with this name and marks it claimed.
func (idx *DriftIndex) ClaimByName(name string) (Record, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return Record{}, false
	}
	return idx.claim(i)
}

func (idx *DriftIndex) claim(i int) (Record, bool) {
	if idx.claimed[i] {
		return Record{}, false
	}
	idx.claimed[i] = true

	// Drop both keys, but only where they still point at this record.
	r := idx.records[i]
	if j, ok := idx.byID[r.ID]; ok && j == i {
		delete(idx.byID, r.ID)
	}
	if j, ok := idx.byName[r.Name]; ok && j == i {
		delete(idx.byName, r.Name)
	}
	return r, true
}

// RemainingOrphans returns the records nobody claimed, in existing-list order.
// Call it after every desired record has been resolved.
func (idx *DriftIndex) RemainingOrphans() []Record {
	var orphans []Record
	for i, r := range idx.records {
		if !idx.claimed[i] {
			orphans = append(orphans, r)
		}
	}
	return orphans
}

// Ambiguous returns the ids and names that more than one existing record carries.
func (idx *DriftIndex) Ambiguous() (ids, names []string) {
	return idx.dupIDs, idx.dupNames
}
