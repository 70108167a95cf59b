package common

import (
	"time"
)

// User is a registered identity. Names are not unique.
type User struct {
	ID   string
	Name string
}

// Exercise is one log entry. Date is always UTC midnight.
type Exercise struct {
	Description     string
	DurationMinutes int
	Date            time.Time
}

// ExerciseLog holds every exercise recorded under one username.
// Count always equals len(Entries).
type ExerciseLog struct {
	Username string
	Count    int
	Entries  []Exercise
}

// NewExerciseLog starts a log for username with a single entry.
func NewExerciseLog(username string, first Exercise) ExerciseLog {
	return ExerciseLog{
		Username: username,
		Count:    1,
		Entries:  []Exercise{first},
	}
}

// Append adds ex to the end of the log and bumps the entry counter.
func (l *ExerciseLog) Append(ex Exercise) {
	l.Entries = append(l.Entries, ex)
	l.Count++
}

// Between returns the entries dated within [from, to]. A zero bound is open.
func (l ExerciseLog) Between(from, to time.Time) []Exercise {
	filtered := make([]Exercise, 0, len(l.Entries))
	for _, ex := range l.Entries {
		if !from.IsZero() && ex.Date.Before(from) {
			continue
		}
		if !to.IsZero() && ex.Date.After(to) {
			continue
		}
		filtered = append(filtered, ex)
	}
	return filtered
}
