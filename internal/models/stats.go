package models

import "time"

// ScheduleStats summarises a generated duty schedule for reporting.
type ScheduleStats struct {
	Term              Term           `json:"term"`
	TotalAssignments  int            `json:"total_assignments"`
	StudentsAssigned  int            `json:"students_assigned"`
	AvgPerStudent     float64        `json:"avg_per_student"`
	BalanceScore      float64        `json:"balance_score"`
	AssignmentsByDay  map[int]int    `json:"assignments_by_day"`
	AssignmentsByRoom map[string]int `json:"assignments_by_room"`
	GeneratedAt       time.Time      `json:"generated_at"`
}
