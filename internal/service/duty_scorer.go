package service

import (
	"math"

	"github.com/noah-isme/library-duty-api/internal/models"
)

// Fairness weights. They sum to 100; the final score is the weighted sum
// divided by 100.
const (
	studentBalanceWeight = 30.0
	dayBalanceWeight     = 25.0
	roomBalanceWeight    = 25.0
	gradeBalanceWeight   = 20.0
)

// scoreCandidate rates a valid candidate in [0,1] across four fairness
// dimensions. The student-load term rewards exact quota fulfilment only, and
// the remaining three use absolute deviation from the mean rather than
// variance. Downstream balance statistics reuse this same function, so the
// formulas must stay stable.
func scoreCandidate(candidate []models.Assignment, students []models.Student, slots []dutySlot, cons Constraints) float64 {
	if len(students) == 0 || len(candidate) == 0 {
		return 0
	}

	perStudent := make(map[string]int, len(students))
	for _, assignment := range candidate {
		perStudent[assignment.StudentID]++
	}

	score := studentBalanceScore(students, perStudent, cons.MaxAssignmentsPerStudent)
	score += dayBalanceScore(candidate)
	score += roomBalanceScore(candidate, slots)
	score += gradeBalanceScore(candidate, students)
	return score / 100.0
}

// studentBalanceScore awards the full 30 points only when every student
// carries exactly the quota. A student below quota contributes nothing.
func studentBalanceScore(students []models.Student, perStudent map[string]int, quota int) float64 {
	if quota == 0 {
		return 0
	}
	var score float64
	share := studentBalanceWeight / float64(len(students))
	for i := range students {
		if perStudent[students[i].ID] == quota {
			score += share
		}
	}
	return score
}

func dayBalanceScore(candidate []models.Assignment) float64 {
	counts := make(map[int]int)
	for _, assignment := range candidate {
		counts[assignment.DayOfWeek]++
	}
	days := models.MaxDutyDay - models.MinDutyDay + 1
	mean := float64(len(candidate)) / float64(days)
	var deviation float64
	for day := models.MinDutyDay; day <= models.MaxDutyDay; day++ {
		deviation += math.Abs(float64(counts[day]) - mean)
	}
	return math.Max(0, dayBalanceWeight-deviation)
}

func roomBalanceScore(candidate []models.Assignment, slots []dutySlot) float64 {
	roomSet := make(map[string]bool)
	for _, slot := range slots {
		roomSet[slot.RoomID] = true
	}
	if len(roomSet) == 0 {
		return 0
	}
	counts := make(map[string]int)
	for _, assignment := range candidate {
		counts[assignment.RoomID]++
	}
	mean := float64(len(candidate)) / float64(len(roomSet))
	var deviation float64
	for roomID := range roomSet {
		deviation += math.Abs(float64(counts[roomID]) - mean)
	}
	return math.Max(0, roomBalanceWeight-deviation)
}

func gradeBalanceScore(candidate []models.Assignment, students []models.Student) float64 {
	gradeByStudent := make(map[string]int, len(students))
	gradeSet := make(map[int]bool)
	for i := range students {
		gradeByStudent[students[i].ID] = students[i].Grade
		gradeSet[students[i].Grade] = true
	}
	if len(gradeSet) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, assignment := range candidate {
		counts[gradeByStudent[assignment.StudentID]]++
	}
	mean := float64(len(candidate)) / float64(len(gradeSet))
	var deviation float64
	for grade := range gradeSet {
		deviation += math.Abs(float64(counts[grade]) - mean)
	}
	return math.Max(0, gradeBalanceWeight-deviation)
}
