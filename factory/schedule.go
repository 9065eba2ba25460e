/*
Package factory provides JSON/YAML to Go schedule conversion.

PURPOSE:
  Converts schedule documents into schedule.Schedule values. Documents are
  what operators keep in version control and what the API accepts, so the
  same parser serves `apply --file`, the HTTP handlers, and the retry sweep
  (which re-reads the document stored with a failed run).

DOCUMENT SCHEMA (JSON shown, YAML uses the same keys):
  {
    "id": "3f1c...",
    "instance_id": "inst-1",
    "name": "Support",
    "description": "front line",
    "time_zone": "America/New_York",
    "config": [
      {"day": "MONDAY", "start": "09:00", "end": "17:00"}
    ],
    "tags": {"team": "support"},
    "overrides": [
      {
        "name": "Christmas",
        "effective_from": "2025-12-24",
        "effective_till": "2025-12-26",
        "config": [{"day": "WEDNESDAY", "start": "10:00", "end": "14:00"}]
      }
    ]
  }

OVERRIDES KEY:
  Absent or null:  overrides are not managed, existing ones are left alone
  []:              every existing override is deleted

STRICTNESS:
  Unknown keys are rejected in both formats, so a typo such as
  "effective_unitl" fails instead of silently dropping the field.

SEE ALSO:
  - schedule/types.go: Schedule type definition
  - api/dto.go:        Wraps ScheduleDoc for responses
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warp/schedule-engine/hours"
	"github.com/warp/schedule-engine/overrides"
	"github.com/warp/schedule-engine/schedule"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// SlotDoc is one hours entry with "HH:MM" times.
type SlotDoc struct {
	Day   string `json:"day" yaml:"day"`
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// OverrideDoc is one override entry. ID is optional.
type OverrideDoc struct {
	ID            string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	EffectiveFrom string    `json:"effective_from" yaml:"effective_from"`
	EffectiveTill string    `json:"effective_till" yaml:"effective_till"`
	Config        []SlotDoc `json:"config" yaml:"config"`
}

// ScheduleDoc is the document form of a schedule.
type ScheduleDoc struct {
	ID          string            `json:"id,omitempty" yaml:"id,omitempty"`
	InstanceID  string            `json:"instance_id" yaml:"instance_id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	TimeZone    string            `json:"time_zone" yaml:"time_zone"`
	Config      []SlotDoc         `json:"config" yaml:"config"`
	Tags        map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Overrides   []OverrideDoc     `json:"overrides" yaml:"overrides"` // nil = unmanaged
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts schedule documents to Go structs.
type ScheduleFactory struct{}

// NewScheduleFactory creates a new schedule factory.
func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseJSON parses a JSON document into a Schedule.
func (f *ScheduleFactory) ParseJSON(data []byte) (schedule.Schedule, error) {
	var doc ScheduleDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: failed to parse schedule JSON: %v", schedule.ErrInvalidRequest, err)
	}
	return f.FromDoc(doc)
}

// ParseYAML parses a YAML document into a Schedule.
func (f *ScheduleFactory) ParseYAML(data []byte) (schedule.Schedule, error) {
	var doc ScheduleDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: failed to parse schedule YAML: %v", schedule.ErrInvalidRequest, err)
	}
	return f.FromDoc(doc)
}

// ParseFile picks the format from the extension: .json is JSON, anything
// else is read as YAML.
func (f *ScheduleFactory) ParseFile(path string) (schedule.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return f.ParseJSON(data)
	}
	return f.ParseYAML(data)
}

// FromDoc converts a ScheduleDoc to a Schedule. It checks days and times;
// everything else is left to Schedule.Validate.
func (f *ScheduleFactory) FromDoc(doc ScheduleDoc) (schedule.Schedule, error) {
	config, err := parseSlots(doc.Config)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: %v", schedule.ErrInvalidRequest, err)
	}

	s := schedule.Schedule{
		ID:          doc.ID,
		InstanceID:  doc.InstanceID,
		Name:        doc.Name,
		Description: doc.Description,
		TimeZone:    doc.TimeZone,
		Config:      config,
		Tags:        doc.Tags,
	}

	if doc.Overrides != nil {
		s.Overrides = make([]overrides.Record, 0, len(doc.Overrides))
		for i, od := range doc.Overrides {
			cfg, err := parseSlots(od.Config)
			if err != nil {
				return schedule.Schedule{}, fmt.Errorf("%w: overrides[%d]: %v", schedule.ErrInvalidRequest, i, err)
			}
			s.Overrides = append(s.Overrides, overrides.Record{
				ID:            od.ID,
				Name:          od.Name,
				Description:   od.Description,
				EffectiveFrom: od.EffectiveFrom,
				EffectiveTill: od.EffectiveTill,
				Config:        cfg,
			})
		}
	}
	return s, nil
}

// ToDoc converts a Schedule to a ScheduleDoc.
func (f *ScheduleFactory) ToDoc(s schedule.Schedule) ScheduleDoc {
	doc := ScheduleDoc{
		ID:          s.ID,
		InstanceID:  s.InstanceID,
		Name:        s.Name,
		Description: s.Description,
		TimeZone:    s.TimeZone,
		Config:      slotDocs(s.Config),
		Tags:        s.Tags,
	}
	if s.Overrides != nil {
		doc.Overrides = make([]OverrideDoc, len(s.Overrides))
		for i, o := range s.Overrides {
			doc.Overrides[i] = f.ToOverrideDoc(o)
		}
	}
	return doc
}

// ToOverrideDoc converts one override record.
func (f *ScheduleFactory) ToOverrideDoc(o overrides.Record) OverrideDoc {
	return OverrideDoc{
		ID:            o.ID,
		Name:          o.Name,
		Description:   o.Description,
		EffectiveFrom: o.EffectiveFrom,
		EffectiveTill: o.EffectiveTill,
		Config:        slotDocs(o.Config),
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseSlots(docs []SlotDoc) ([]hours.Slot, error) {
	slots := make([]hours.Slot, 0, len(docs))
	for i, d := range docs {
		day, err := hours.ParseDay(d.Day)
		if err != nil {
			return nil, fmt.Errorf("config[%d]: %w", i, err)
		}
		start, err := hours.ParseTimeSlice(d.Start)
		if err != nil {
			return nil, fmt.Errorf("config[%d].start: %w", i, err)
		}
		end, err := hours.ParseTimeSlice(d.End)
		if err != nil {
			return nil, fmt.Errorf("config[%d].end: %w", i, err)
		}
		slots = append(slots, hours.Slot{Day: day, Start: start, End: end})
	}
	return slots, nil
}

func slotDocs(slots []hours.Slot) []SlotDoc {
	docs := make([]SlotDoc, len(slots))
	for i, s := range slots {
		docs[i] = SlotDoc{Day: string(s.Day), Start: s.Start.String(), End: s.End.String()}
	}
	return docs
}
