package models

// Term identifies one of the two halves of the school year. Duty schedules
// are generated independently per term.
type Term string

const (
	TermFirst  Term = "FIRST_TERM"
	TermSecond Term = "SECOND_TERM"
)

// Valid reports whether the term is one of the two known values.
func (t Term) Valid() bool {
	return t == TermFirst || t == TermSecond
}

// Previous returns the preceding term, or an empty Term for the first one.
func (t Term) Previous() Term {
	if t == TermSecond {
		return TermFirst
	}
	return ""
}
