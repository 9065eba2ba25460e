/*
Package hours provides the weekly opening-hours model shared by schedules and overrides.

PURPOSE:
  A schedule's base configuration and each override's configuration are both
  a collection of (day, start, end) slots. This package owns that value type,
  its validation, and set comparison used for drift detection.

KEY CONCEPTS:
  - Day:       MONDAY..SUNDAY, the names used on the wire
  - TimeSlice: hour + minute of day
  - Slot:      one (day, start, end) entry; comparable, usable as a map key
  - SlotSet:   unordered, duplicate-free view of a slot list

EQUALITY:
  Two configurations are the same when their SlotSets are equal. Order and
  duplicates in the input slices never count as drift.

DURATIONS:
  Slot.Hours() returns a decimal.Decimal so totals never pick up float error
  (0.25h quarter slots add up exactly).

SEE ALSO:
  - overrides/record.go: Override records built on Slot
  - schedule/types.go:   Base schedule config
*/
package hours

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY
// =============================================================================

type Day string

const (
	Monday    Day = "MONDAY"
	Tuesday   Day = "TUESDAY"
	Wednesday Day = "WEDNESDAY"
	Thursday  Day = "THURSDAY"
	Friday    Day = "FRIDAY"
	Saturday  Day = "SATURDAY"
	Sunday    Day = "SUNDAY"
)

// Days lists all days in week order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDay accepts any casing ("mon" is not accepted, full names only).
func ParseDay(s string) (Day, error) {
	d := Day(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return d, nil
}

func (d Day) Valid() bool {
	for _, known := range Days {
		if d == known {
			return true
		}
	}
	return false
}

// =============================================================================
// TIME SLICE
// =============================================================================

type TimeSlice struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

func At(h, m int) TimeSlice { return TimeSlice{Hours: h, Minutes: m} }

func (t TimeSlice) Minute() int { return t.Hours*60 + t.Minutes }
func (t TimeSlice) String() string { return fmt.Sprintf("%02d:%02d", t.Hours, t.Minutes) }

func (t TimeSlice) Validate() error {
	if t.Hours < 0 || t.Hours > 23 || t.Minutes < 0 || t.Minutes > 59 {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, t.Hours, t.Minutes)
	}
	return nil
}

// ParseTimeSlice parses "HH:MM" with exactly two digits on each side.
// Surrounding whitespace is ignored; anything else fails.
func ParseTimeSlice(s string) (TimeSlice, error) {
	v := strings.TrimSpace(s)
	if len(v) != 5 || v[2] != ':' || !isDigits(v[:2]) || !isDigits(v[3:]) {
		return TimeSlice{}, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTime, s)
	}
	t := TimeSlice{
		Hours:   int(v[0]-'0')*10 + int(v[1]-'0'),
		Minutes: int(v[3]-'0')*10 + int(v[4]-'0'),
	}
	if err := t.Validate(); err != nil {
		return TimeSlice{}, err
	}
	return t, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// SLOT
// =============================================================================

// Slot is one (day, start, end) entry.
type Slot struct {
	Day   Day       `json:"day"`
	Start TimeSlice `json:"start_time"`
	End   TimeSlice `json:"end_time"`
}

func NewSlot(day Day, startH, startM, endH, endM int) Slot {
	return Slot{Day: day, Start: At(startH, startM), End: At(endH, endM)}
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Day, s.Start, s.End)
}

func (s Slot) Validate() error {
	if !s.Day.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDay, s.Day)
	}
	if err := s.Start.Validate(); err != nil {
		return err
	}
	return s.End.Validate()
}

// Hours returns the slot length. An end at or before the start wraps past
// midnight, so 22:00-02:00 is 4h and 09:00-09:00 is 24h.
func (s Slot) Hours() decimal.Decimal {
	minutes := s.End.Minute() - s.Start.Minute()
	if minutes <= 0 {
		minutes += 24 * 60
	}
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
}

// ValidateAll returns the first invalid slot error, annotated with its position.
func ValidateAll(slots []Slot) error {
	for i, s := range slots {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("config[%d]: %w", i, err)
		}
	}
	return nil
}

// TotalHours sums the length of distinct slots.
func TotalHours(slots []Slot) decimal.Decimal {
	total := decimal.Zero
	for _, s := range NewSlotSet(slots).Slots() {
		total = total.Add(s.Hours())
	}
	return total
}
