package hours_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/schedule-engine/hours"
)

func TestParseDay(t *testing.T) {
	d, err := hours.ParseDay(" monday ")
	require.NoError(t, err)
	assert.Equal(t, hours.Monday, d)

	_, err = hours.ParseDay("mon")
	assert.ErrorIs(t, err, hours.ErrInvalidDay)
}

func TestParseTimeSlice(t *testing.T) {
	ts, err := hours.ParseTimeSlice("09:30")
	require.NoError(t, err)
	assert.Equal(t, hours.At(9, 30), ts)
	assert.Equal(t, "09:30", ts.String())

	_, err = hours.ParseTimeSlice("24:00")
	assert.ErrorIs(t, err, hours.ErrInvalidTime)

	ts, err = hours.ParseTimeSlice(" 00:05 ")
	require.NoError(t, err)
	assert.Equal(t, hours.At(0, 5), ts)

	for _, bad := range []string{
		"nine", "24:00", "12:60", "",
		"09:30:45", "17:00pm", "5:00pm", "9:5", "9:05", "+9:-0", "09:00 junk", "0930", "09.30",
	} {
		_, err := hours.ParseTimeSlice(bad)
		assert.ErrorIs(t, err, hours.ErrInvalidTime, "input %q", bad)
	}
}

func TestSlot_Validate(t *testing.T) {
	assert.NoError(t, hours.NewSlot(hours.Friday, 9, 0, 17, 0).Validate())
	assert.ErrorIs(t, hours.Slot{Day: "FUNDAY"}.Validate(), hours.ErrInvalidDay)
	assert.ErrorIs(t, hours.NewSlot(hours.Friday, 9, 60, 17, 0).Validate(), hours.ErrInvalidTime)

	err := hours.ValidateAll([]hours.Slot{
		hours.NewSlot(hours.Monday, 9, 0, 17, 0),
		hours.NewSlot(hours.Monday, 25, 0, 17, 0),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config[1]")
}

func TestSlot_Hours(t *testing.T) {
	tests := []struct {
		name string
		slot hours.Slot
		want string
	}{
		{"business day", hours.NewSlot(hours.Monday, 9, 0, 17, 0), "8"},
		{"quarter hour", hours.NewSlot(hours.Monday, 9, 0, 9, 15), "0.25"},
		{"wraps midnight", hours.NewSlot(hours.Monday, 22, 0, 2, 0), "4"},
		{"closes at midnight", hours.NewSlot(hours.Monday, 18, 0, 0, 0), "6"},
		{"full day", hours.NewSlot(hours.Monday, 0, 0, 0, 0), "24"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, decimal.RequireFromString(tt.want).Equal(tt.slot.Hours()),
				"got %s", tt.slot.Hours())
		})
	}
}

func TestTotalHours_IgnoresDuplicates(t *testing.T) {
	mon := hours.NewSlot(hours.Monday, 9, 0, 13, 0)
	tue := hours.NewSlot(hours.Tuesday, 9, 0, 9, 20)

	total := hours.TotalHours([]hours.Slot{mon, tue, mon})

	assert.Equal(t, "4.33", total.StringFixed(2))
}

func TestSameSlots(t *testing.T) {
	a := hours.NewSlot(hours.Monday, 9, 0, 17, 0)
	b := hours.NewSlot(hours.Tuesday, 9, 0, 17, 0)

	assert.True(t, hours.SameSlots([]hours.Slot{a, b}, []hours.Slot{b, a}), "order is irrelevant")
	assert.True(t, hours.SameSlots([]hours.Slot{a, a, b}, []hours.Slot{b, a}), "duplicates are irrelevant")
	assert.True(t, hours.SameSlots(nil, []hours.Slot{}))
	assert.False(t, hours.SameSlots([]hours.Slot{a}, []hours.Slot{a, b}))
	assert.False(t, hours.SameSlots([]hours.Slot{a, b}, []hours.Slot{a}), "comparison is symmetric")
}

func TestSlotSet_SlotsAreSorted(t *testing.T) {
	set := hours.NewSlotSet([]hours.Slot{
		hours.NewSlot(hours.Sunday, 9, 0, 10, 0),
		hours.NewSlot(hours.Monday, 13, 0, 17, 0),
		hours.NewSlot(hours.Monday, 9, 0, 12, 0),
	})

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []hours.Slot{
		hours.NewSlot(hours.Monday, 9, 0, 12, 0),
		hours.NewSlot(hours.Monday, 13, 0, 17, 0),
		hours.NewSlot(hours.Sunday, 9, 0, 10, 0),
	}, set.Slots())
}
