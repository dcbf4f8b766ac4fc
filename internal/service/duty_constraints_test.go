package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/library-duty-api/internal/models"
)

func TestEffectiveCapacityTakesStricterCap(t *testing.T) {
	cons := Constraints{MaxStudentsPerSlot: 2}
	assert.Equal(t, 2, cons.effectiveCapacity(dutySlot{Capacity: 10}))
	assert.Equal(t, 1, cons.effectiveCapacity(dutySlot{Capacity: 1}))

	unbounded := Constraints{}
	assert.Equal(t, 10, unbounded.effectiveCapacity(dutySlot{Capacity: 10}))
}

func TestSlotCapacityPredicate(t *testing.T) {
	slot := dutySlot{Day: 1, RoomID: "r1", Capacity: 4}
	state := newAttemptState([]dutySlot{slot}, Constraints{MaxAssignmentsPerStudent: 2, MaxStudentsPerSlot: 2}, models.TermFirst)

	a := models.Student{ID: "a", ClassID: "C1"}
	b := models.Student{ID: "b", ClassID: "C2"}
	c := models.Student{ID: "c", ClassID: "C3"}

	assert.True(t, state.slotHasCapacity(slot))
	state.place(&a, slot)
	assert.True(t, state.slotHasCapacity(slot))
	state.place(&b, slot)
	assert.False(t, state.slotHasCapacity(slot), "configured per-slot cap wins over room capacity")
	assert.False(t, state.canAssign(&c, slot))
}

func TestStudentFreeOnDayAcrossRooms(t *testing.T) {
	slots := []dutySlot{
		{Day: 1, RoomID: "r1", Capacity: 4},
		{Day: 1, RoomID: "r2", Capacity: 4},
	}
	state := newAttemptState(slots, DefaultConstraints(), models.TermFirst)

	a := models.Student{ID: "a", ClassID: "C1"}
	state.place(&a, slots[0])
	assert.False(t, state.studentFreeOnDay(&a, 1), "one duty per weekday regardless of room")
	assert.True(t, state.studentFreeOnDay(&a, 2))
}

func TestSameClassExclusion(t *testing.T) {
	slot := dutySlot{Day: 2, RoomID: "r1", Capacity: 4}
	state := newAttemptState([]dutySlot{slot}, DefaultConstraints(), models.TermFirst)

	a := models.Student{ID: "a", ClassID: "C1"}
	b := models.Student{ID: "b", ClassID: "C1"}
	state.place(&a, slot)
	assert.False(t, state.classAllowedInSlot(&b, slot))

	relaxed := newAttemptState([]dutySlot{slot}, Constraints{MaxAssignmentsPerStudent: 2, MaxStudentsPerSlot: 4}, models.TermFirst)
	relaxed.place(&a, slot)
	assert.True(t, relaxed.classAllowedInSlot(&b, slot), "exclusion only applies when enabled")
}

func TestPriorTermPatternBlocksWednesdayAndFridayOnly(t *testing.T) {
	student := models.Student{ID: "a", ClassID: "C1", PriorTermWeekdays: map[int]bool{1: true, 3: true, 5: true}}

	state := newAttemptState(nil, DefaultConstraints(), models.TermSecond)
	assert.True(t, state.avoidsPriorTermPattern(&student, 1), "Monday repeats stay allowed")
	assert.False(t, state.avoidsPriorTermPattern(&student, 3))
	assert.False(t, state.avoidsPriorTermPattern(&student, 5))
	assert.True(t, state.avoidsPriorTermPattern(&student, 4))

	firstTerm := newAttemptState(nil, DefaultConstraints(), models.TermFirst)
	assert.True(t, firstTerm.avoidsPriorTermPattern(&student, 3))

	disabled := newAttemptState(nil, Constraints{MaxAssignmentsPerStudent: 2, AvoidSameClassSameDay: true}, models.TermSecond)
	assert.True(t, disabled.avoidsPriorTermPattern(&student, 3))
}
