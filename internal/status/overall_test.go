package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func statuses(states ...State) []StatusInfo {
	out := make([]StatusInfo, len(states))
	for i, s := range states {
		out[i] = New(s)
	}
	return out
}

func TestCalculateOverall_Empty(t *testing.T) {
	got := CalculateOverall(nil)
	assert.Equal(t, Backlogged, got.State)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, 0, got.Total)
}

func TestCalculateOverall_Cascade(t *testing.T) {
	tests := []struct {
		name         string
		in           []StatusInfo
		wantState    State
		wantProgress int
	}{
		{
			// 150/3 = 50; "building present" fires before "all built".
			name:         "building present",
			in:           statuses(Built, Building, Backlogged),
			wantState:    Building,
			wantProgress: 50,
		},
		{
			name:         "any broken wins",
			in:           statuses(Built, Built, Broken, Blocked),
			wantState:    Broken,
			wantProgress: (100 + 100 + 75 + 40) / 4,
		},
		{
			name:         "blocked above 30 percent",
			in:           statuses(Blocked, Building, Built),
			wantState:    Blocked,
			wantProgress: (40 + 50 + 100) / 3,
		},
		{
			name:         "blocked exactly 30 percent is not enough",
			in:           statuses(Blocked, Blocked, Blocked, Built, Built, Built, Built, Built, Built, Built),
			wantState:    Building,
			wantProgress: (3*40 + 7*100) / 10,
		},
		{
			name:         "all built",
			in:           statuses(Built, Built),
			wantState:    Built,
			wantProgress: 100,
		},
		{
			name:         "backlogged majority",
			in:           statuses(Backlogged, Backlogged, Built),
			wantState:    Backlogged,
			wantProgress: 33,
		},
		{
			name:         "falls through to building",
			in:           statuses(Backlogged, Built, Burned, Built),
			wantState:    Building,
			wantProgress: 50,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateOverall(tc.in)
			assert.Equal(t, tc.wantState, got.State)
			assert.Equal(t, tc.wantProgress, got.Progress)
			assert.Equal(t, len(tc.in), got.Total)
		})
	}
}

func TestCalculateOverall_Breakdown(t *testing.T) {
	got := CalculateOverall(append(statuses(Built, Built, Broken), StatusInfo{}))
	assert.Equal(t, 2, got.Breakdown[Built])
	assert.Equal(t, 1, got.Breakdown[Broken])
	// The zero value normalizes to backlogged.
	assert.Equal(t, 1, got.Breakdown[Backlogged])
	assert.Equal(t, 0, got.Breakdown[Burned])
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 2, floorDiv(7, 3))
	assert.Equal(t, -3, floorDiv(-7, 3))
	assert.Equal(t, 0, floorDiv(0, 5))
}
