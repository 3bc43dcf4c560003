package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDatasetReloadEvent_Validate(t *testing.T) {
	tests := []struct {
		name     string
		event    DatasetReloadEvent
		expected bool
	}{
		{
			name:     "event with id",
			event:    DatasetReloadEvent{EventID: uuid.New(), Reason: "nightly export"},
			expected: true,
		},
		{
			name:     "event without id",
			event:    DatasetReloadEvent{Reason: "manual"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.Validate())
		})
	}
}

func TestLoadReport_Ready(t *testing.T) {
	assert.True(t, LoadReport{PermitsLoaded: true, TypesLoaded: true, BoundariesLoaded: true}.Ready())
	assert.False(t, LoadReport{PermitsLoaded: true, TypesLoaded: true}.Ready())
	assert.False(t, LoadReport{}.Ready())
}

func TestPermitTypes_InsertionOrderWithoutDuplicates(t *testing.T) {
	totals := []TypeTotal{
		{EventType: "Shooting Permit"},
		{EventType: "Theater Load in and Load Outs"},
		{EventType: "Shooting Permit"},
		{EventType: "DCAS Prep/Shoot/Wrap Permit"},
		{EventType: "Theater Load in and Load Outs"},
	}

	assert.Equal(t, []string{
		"Shooting Permit",
		"Theater Load in and Load Outs",
		"DCAS Prep/Shoot/Wrap Permit",
	}, PermitTypes(totals))
	assert.Empty(t, PermitTypes(nil))
}

func TestWeek_Before(t *testing.T) {
	assert.True(t, Week{Year: 2022, Week: 52}.Before(Week{Year: 2023, Week: 1}))
	assert.True(t, Week{Year: 2023, Week: 1}.Before(Week{Year: 2023, Week: 2}))
	assert.False(t, Week{Year: 2023, Week: 2}.Before(Week{Year: 2023, Week: 2}))
	assert.False(t, Week{Year: 2024, Week: 1}.Before(Week{Year: 2023, Week: 30}))
	assert.Equal(t, "2023-W05", Week{Year: 2023, Week: 5}.String())
}

func TestViewMode(t *testing.T) {
	all := AllTime()
	assert.True(t, all.IsAllTime())
	_, ok := all.Week()
	assert.False(t, ok)
	assert.Equal(t, "all-time", all.String())

	var zero ViewMode
	assert.True(t, zero.IsAllTime())

	w := WeekView(Week{Year: 2023, Week: 7})
	assert.False(t, w.IsAllTime())
	week, ok := w.Week()
	assert.True(t, ok)
	assert.Equal(t, Week{Year: 2023, Week: 7}, week)
}

func TestFilter_TypeList(t *testing.T) {
	f := NewFilter(3, []string{"B", "zzz", "A", "B", "aaa"})

	assert.Equal(t, 3, f.Window)
	assert.Len(t, f.Types, 4)
	assert.Equal(t, []string{"A", "B", "aaa", "zzz"}, f.TypeList([]string{"A", "B", "C"}))

	clone := f.Clone()
	delete(clone.Types, "A")
	assert.True(t, f.Has("A"))
	assert.False(t, clone.Has("A"))
}
