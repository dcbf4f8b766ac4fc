package models

import "time"

// Student represents a library committee member eligible for duty slots.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Grade     int       `db:"grade" json:"grade"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// PriorTermWeekdays holds the weekdays the student served during the
	// previous term. Populated in memory only when generating the second
	// term; never persisted with the student row.
	PriorTermWeekdays map[int]bool `db:"-" json:"-"`
}

// ServedOn reports whether the student held a duty on the given weekday
// during the previous term.
func (s *Student) ServedOn(day int) bool {
	return s.PriorTermWeekdays[day]
}
