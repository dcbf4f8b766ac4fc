package service

import (
	"github.com/noah-isme/library-duty-api/internal/models"
)

// validateCandidate re-verifies a complete candidate against the global
// invariants: per-student quota, single duty per weekday, per-slot capacity
// and the same-class exclusion. The builder enforces the same rules
// incrementally; this whole-candidate pass exists so a builder bug surfaces
// as an invalid candidate instead of a corrupt schedule.
func validateCandidate(candidate []models.Assignment, students []models.Student, slots []dutySlot, cons Constraints) bool {
	byID := make(map[string]*models.Student, len(students))
	for i := range students {
		byID[students[i].ID] = &students[i]
	}
	capacities := make(map[slotKey]int, len(slots))
	for _, slot := range slots {
		capacities[slotKey{Day: slot.Day, RoomID: slot.RoomID}] = cons.effectiveCapacity(slot)
	}

	perStudent := make(map[string]int)
	studentDays := make(map[string]map[int]bool)
	slotCounts := make(map[slotKey]int)
	slotClasses := make(map[slotKey]map[string]bool)

	for _, assignment := range candidate {
		student, ok := byID[assignment.StudentID]
		if !ok {
			return false
		}
		if assignment.DayOfWeek < models.MinDutyDay || assignment.DayOfWeek > models.MaxDutyDay {
			return false
		}

		perStudent[assignment.StudentID]++
		if perStudent[assignment.StudentID] > cons.MaxAssignmentsPerStudent {
			return false
		}

		if studentDays[assignment.StudentID][assignment.DayOfWeek] {
			return false
		}
		if studentDays[assignment.StudentID] == nil {
			studentDays[assignment.StudentID] = make(map[int]bool)
		}
		studentDays[assignment.StudentID][assignment.DayOfWeek] = true

		key := slotKey{Day: assignment.DayOfWeek, RoomID: assignment.RoomID}
		capacity, ok := capacities[key]
		if !ok {
			return false
		}
		slotCounts[key]++
		if slotCounts[key] > capacity {
			return false
		}

		if cons.AvoidSameClassSameDay {
			if slotClasses[key][student.ClassID] {
				return false
			}
			if slotClasses[key] == nil {
				slotClasses[key] = make(map[string]bool)
			}
			slotClasses[key][student.ClassID] = true
		}
	}
	return true
}
