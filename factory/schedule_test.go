package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/schedule-engine/hours"
	"github.com/warp/schedule-engine/schedule"
)

const supportYAML = `
instance_id: inst-1
name: Support
time_zone: America/New_York
config:
  - {day: monday, start: "09:00", end: "17:00"}
  - {day: FRIDAY, start: "22:00", end: "02:00"}
tags:
  team: support
overrides:
  - name: Christmas
    effective_from: "2025-12-24"
    effective_till: "2025-12-26"
    config:
      - {day: WEDNESDAY, start: "10:00", end: "14:00"}
  - id: keep-me
    name: Boxing Day
    effective_from: "2025-12-26"
    effective_till: "2025-12-27"
    config: []
`

func TestParseYAML(t *testing.T) {
	s, err := NewScheduleFactory().ParseYAML([]byte(supportYAML))
	require.NoError(t, err)

	assert.Equal(t, "inst-1", s.InstanceID)
	assert.Equal(t, []hours.Slot{
		hours.NewSlot(hours.Monday, 9, 0, 17, 0),
		hours.NewSlot(hours.Friday, 22, 0, 2, 0),
	}, s.Config)
	assert.Equal(t, map[string]string{"team": "support"}, s.Tags)
	require.Len(t, s.Overrides, 2)
	assert.Empty(t, s.Overrides[0].ID)
	assert.Equal(t, []hours.Slot{hours.NewSlot(hours.Wednesday, 10, 0, 14, 0)}, s.Overrides[0].Config)
	assert.Equal(t, "keep-me", s.Overrides[1].ID)
	assert.NoError(t, s.Validate())
}

func TestParseJSON_OverridesKey(t *testing.T) {
	f := NewScheduleFactory()
	base := `"instance_id":"i","name":"n","time_zone":"UTC","config":[]`

	tests := []struct {
		name      string
		doc       string
		unmanaged bool
	}{
		{"absent", `{` + base + `}`, true},
		{"null", `{` + base + `,"overrides":null}`, true},
		{"empty", `{` + base + `,"overrides":[]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.ParseJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.unmanaged, s.Overrides == nil)
			assert.Empty(t, s.Overrides)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	f := NewScheduleFactory()

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "name: x\nnmae: y\n"},
		{"bad day", "config:\n  - {day: funday, start: '09:00', end: '10:00'}\n"},
		{"bad time", "config:\n  - {day: MONDAY, start: '25:00', end: '10:00'}\n"},
		{"twelve hour clock", "config:\n  - {day: MONDAY, start: '5:00pm', end: '10:00pm'}\n"},
		{"seconds", "config:\n  - {day: MONDAY, start: '09:30:45', end: '10:00'}\n"},
		{"bad override time", "overrides:\n  - name: x\n    config:\n      - {day: MONDAY, start: 'noon', end: '13:00'}\n"},
		{"empty document", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseYAML([]byte(tt.yaml))
			assert.ErrorIs(t, err, schedule.ErrInvalidRequest)
		})
	}

	_, err := f.ParseJSON([]byte(`{"name":"x","extra":1}`))
	assert.ErrorIs(t, err, schedule.ErrInvalidRequest)
}

func TestToDoc_RoundTrip(t *testing.T) {
	f := NewScheduleFactory()
	s, err := f.ParseYAML([]byte(supportYAML))
	require.NoError(t, err)

	doc := f.ToDoc(s)
	assert.Equal(t, SlotDoc{Day: "FRIDAY", Start: "22:00", End: "02:00"}, doc.Config[1])

	back, err := f.FromDoc(doc)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	f := NewScheduleFactory()

	yamlPath := filepath.Join(dir, "support.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(supportYAML), 0o644))
	s, err := f.ParseFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Support", s.Name)

	jsonPath := filepath.Join(dir, "support.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"instance_id":"i","name":"J","time_zone":"UTC","config":[]}`), 0o644))
	s, err = f.ParseFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "J", s.Name)

	_, err = f.ParseFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
