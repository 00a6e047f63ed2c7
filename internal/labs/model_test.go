package labs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProcess, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProcess, StatusCompleted, true},
		{StatusInProcess, StatusCancelled, true},
		{StatusInProcess, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusInProcess, false},
		{StatusCancelled, StatusInProcess, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPriorityValid(t *testing.T) {
	assert.True(t, PriorityRoutine.Valid())
	assert.True(t, PriorityUrgent.Valid())
	assert.True(t, PriorityStat.Valid())
	assert.False(t, Priority("asap").Valid())
}
