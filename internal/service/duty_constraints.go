package service

import (
	"github.com/noah-isme/library-duty-api/internal/models"
)

// Constraints govern a single scheduling run. The value is immutable for the
// duration of a run and passed explicitly into every call, so tests can
// exercise alternative constraint sets without shared state.
type Constraints struct {
	MaxAssignmentsPerStudent int
	MaxStudentsPerSlot       int
	AvoidSameClassSameDay    bool
	ConsiderPreviousTerm     bool
}

// DefaultConstraints returns the production defaults.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxAssignmentsPerStudent: 2,
		MaxStudentsPerSlot:       4,
		AvoidSameClassSameDay:    true,
		ConsiderPreviousTerm:     true,
	}
}

// effectiveCapacity is the stricter of the room capacity and the configured
// per-slot cap. Both are independent limits on the same quantity.
func (c Constraints) effectiveCapacity(slot dutySlot) int {
	capacity := slot.Capacity
	if c.MaxStudentsPerSlot > 0 && c.MaxStudentsPerSlot < capacity {
		capacity = c.MaxStudentsPerSlot
	}
	return capacity
}

type slotKey struct {
	Day    int
	RoomID string
}

// attemptState is the running state of one constructive attempt. It lives on
// a single attempt's call stack and is never shared across attempts.
type attemptState struct {
	slots       []dutySlot
	cons        Constraints
	term        models.Term
	slotCounts  map[slotKey]int
	slotClasses map[slotKey]map[string]bool
	studentDays map[string]map[int]bool
	dayLoad     map[int]int
	assignments []models.Assignment
}

func newAttemptState(slots []dutySlot, cons Constraints, term models.Term) *attemptState {
	return &attemptState{
		slots:       slots,
		cons:        cons,
		term:        term,
		slotCounts:  make(map[slotKey]int),
		slotClasses: make(map[slotKey]map[string]bool),
		studentDays: make(map[string]map[int]bool),
		dayLoad:     make(map[int]int),
	}
}

func (a *attemptState) slotHasCapacity(slot dutySlot) bool {
	return a.slotCounts[slotKey{Day: slot.Day, RoomID: slot.RoomID}] < a.cons.effectiveCapacity(slot)
}

func (a *attemptState) studentFreeOnDay(student *models.Student, day int) bool {
	return !a.studentDays[student.ID][day]
}

func (a *attemptState) classAllowedInSlot(student *models.Student, slot dutySlot) bool {
	if !a.cons.AvoidSameClassSameDay {
		return true
	}
	return !a.slotClasses[slotKey{Day: slot.Day, RoomID: slot.RoomID}][student.ClassID]
}

// avoidsPriorTermPattern blocks only Wednesday and Friday repeats from the
// previous term. The narrow rule is the documented duty policy, not a general
// "never repeat a weekday" constraint.
func (a *attemptState) avoidsPriorTermPattern(student *models.Student, day int) bool {
	if !a.cons.ConsiderPreviousTerm || a.term != models.TermSecond {
		return true
	}
	if day != 3 && day != 5 {
		return true
	}
	return !student.ServedOn(day)
}

// canAssign reports whether all four slot predicates pass for the student.
func (a *attemptState) canAssign(student *models.Student, slot dutySlot) bool {
	return a.slotHasCapacity(slot) &&
		a.studentFreeOnDay(student, slot.Day) &&
		a.classAllowedInSlot(student, slot) &&
		a.avoidsPriorTermPattern(student, slot.Day)
}

func (a *attemptState) place(student *models.Student, slot dutySlot) {
	key := slotKey{Day: slot.Day, RoomID: slot.RoomID}
	a.slotCounts[key]++
	if a.slotClasses[key] == nil {
		a.slotClasses[key] = make(map[string]bool)
	}
	a.slotClasses[key][student.ClassID] = true
	if a.studentDays[student.ID] == nil {
		a.studentDays[student.ID] = make(map[int]bool)
	}
	a.studentDays[student.ID][slot.Day] = true
	a.dayLoad[slot.Day]++
	a.assignments = append(a.assignments, models.Assignment{
		StudentID: student.ID,
		RoomID:    slot.RoomID,
		DayOfWeek: slot.Day,
		Term:      a.term,
	})
}
