package service

import (
	"time"

	"github.com/noah-isme/library-duty-api/internal/models"
)

// computeScheduleStats summarises a persisted or freshly generated schedule.
// BalanceScore reuses the fairness scorer so the reported number matches the
// score the search optimised for.
func computeScheduleStats(term models.Term, assignments []models.Assignment, students []models.Student, slots []dutySlot, cons Constraints) models.ScheduleStats {
	byDay := make(map[int]int)
	byRoom := make(map[string]int)
	distinct := make(map[string]bool)
	for _, assignment := range assignments {
		byDay[assignment.DayOfWeek]++
		byRoom[assignment.RoomID]++
		distinct[assignment.StudentID] = true
	}

	var avg float64
	if len(distinct) > 0 {
		avg = float64(len(assignments)) / float64(len(distinct))
	}

	return models.ScheduleStats{
		Term:              term,
		TotalAssignments:  len(assignments),
		StudentsAssigned:  len(distinct),
		AvgPerStudent:     avg,
		BalanceScore:      scoreCandidate(assignments, students, slots, cons),
		AssignmentsByDay:  byDay,
		AssignmentsByRoom: byRoom,
		GeneratedAt:       time.Now().UTC(),
	}
}
