package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/schedule-engine/schedule"
)

func TestDiffTags(t *testing.T) {
	tests := []struct {
		name       string
		prev, want map[string]string
		add        map[string]string
		remove     []string
	}{
		{"both empty", nil, nil, nil, nil},
		{"same", map[string]string{"a": "1"}, map[string]string{"a": "1"}, nil, nil},
		{"added", nil, map[string]string{"a": "1"}, map[string]string{"a": "1"}, nil},
		{"removed", map[string]string{"a": "1", "b": "2"}, map[string]string{"b": "2"}, nil, []string{"a"}},
		{"value changed", map[string]string{"a": "1"}, map[string]string{"a": "2"}, map[string]string{"a": "2"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			add, remove := schedule.DiffTags(tt.prev, tt.want)
			assert.Equal(t, tt.add, add)
			assert.Equal(t, tt.remove, remove)
		})
	}
}
