package reservations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOccurrence(t *testing.T) {
	// пятница, 10:00
	now := time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		slot Slot
		want time.Time
	}{
		{"later today", Slot{Weekday: time.Friday, StartsAt: "11:00"}, time.Date(2026, time.March, 20, 11, 0, 0, 0, time.UTC)},
		{"earlier today rolls a week", Slot{Weekday: time.Friday, StartsAt: "09:30"}, time.Date(2026, time.March, 27, 9, 30, 0, 0, time.UTC)},
		{"next monday", Slot{Weekday: time.Monday, StartsAt: "18:15"}, time.Date(2026, time.March, 23, 18, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.slot.NextOccurrence(now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Slot{ID: 7, StartsAt: "25:99"}.NextOccurrence(now)
	assert.Error(t, err)
}
