package hours

import (
	"errors"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	ErrInvalidDay  = errors.New("invalid day")
	ErrInvalidTime = errors.New("invalid time of day")
)

// SlotSet is an unordered, duplicate-free collection of slots.
// Not safe for concurrent mutation; sets are built per comparison.
type SlotSet struct {
	set mapset.Set[Slot]
}

func NewSlotSet(slots []Slot) SlotSet {
	return SlotSet{set: mapset.NewThreadUnsafeSet(slots...)}
}

func (s SlotSet) Len() int { return s.set.Cardinality() }
func (s SlotSet) Equal(other SlotSet) bool { return s.set.Equal(other.set) }

// Slots returns the members in week order, then by start, then by end.
func (s SlotSet) Slots() []Slot {
	out := s.set.ToSlice()
	SortSlots(out)
	return out
}

// SameSlots reports whether a and b hold the same slots, ignoring order and duplicates.
func SameSlots(a, b []Slot) bool {
	return NewSlotSet(a).Equal(NewSlotSet(b))
}

// SortSlots orders slots in place by day of week, start, end.
func SortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Day != b.Day {
			return dayIndex(a.Day) < dayIndex(b.Day)
		}
		if a.Start != b.Start {
			return a.Start.Minute() < b.Start.Minute()
		}
		return a.End.Minute() < b.End.Minute()
	})
}

func dayIndex(d Day) int {
	for i, known := range Days {
		if d == known {
			return i
		}
	}
	return len(Days)
}
