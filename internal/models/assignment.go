package models

import "time"

// Weekday bounds for assignable duty days. Weekends are never assignable.
const (
	MinDutyDay = 1
	MaxDutyDay = 5
)

// Assignment binds a student to a (weekday, room) duty slot for a term.
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	Term      Term      `db:"term" json:"term"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
