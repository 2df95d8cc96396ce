package models

import (
	"time"

	"github.com/campuskit/timetable-api/internal/slot"
)

// StaffUnavailability marks a window of periods a teacher cannot be
// scheduled into. Windows repeat weekly by default; a window with
// RecurringWeekly false lapses after RepeatUntil, and ExceptionDate skips a
// single occurrence.
type StaffUnavailability struct {
	ID              string     `db:"id" json:"id"`
	StaffID         string     `db:"staff_id" json:"staff_id"`
	SessionID       string     `db:"session_id" json:"session_id"`
	Day             slot.Day   `db:"day" json:"day"`
	Period          int        `db:"period_number" json:"period_number"`
	Duration        int        `db:"duration_periods" json:"duration_periods"`
	Reason          string     `db:"reason" json:"reason"`
	RecurringWeekly bool       `db:"recurring_weekly" json:"recurring_weekly"`
	RepeatUntil     *time.Time `db:"repeat_until" json:"repeat_until,omitempty"`
	ExceptionDate   *time.Time `db:"exception_date" json:"exception_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Covers reports whether the window blocks the given period.
func (u *StaffUnavailability) Covers(period int) bool {
	return period >= u.Period && period < u.Period+u.Duration
}

// AppliesOn reports whether the window is in force on the given calendar
// date. Timetable entries are weekly, so callers resolve a day-of-week to
// its next occurrence before asking.
func (u *StaffUnavailability) AppliesOn(date time.Time) bool {
	day := date.Truncate(24 * time.Hour)
	if u.ExceptionDate != nil && u.ExceptionDate.Truncate(24*time.Hour).Equal(day) {
		return false
	}
	if !u.RecurringWeekly && u.RepeatUntil != nil && day.After(u.RepeatUntil.Truncate(24*time.Hour)) {
		return false
	}
	return true
}

// NextOccurrence maps a teaching day to its next calendar date from the
// given reference time, counting today as the next occurrence.
func NextOccurrence(day slot.Day, from time.Time) time.Time {
	target := map[slot.Day]time.Weekday{
		slot.Monday:    time.Monday,
		slot.Tuesday:   time.Tuesday,
		slot.Wednesday: time.Wednesday,
		slot.Thursday:  time.Thursday,
		slot.Friday:    time.Friday,
	}[day]
	date := from.Truncate(24 * time.Hour)
	for date.Weekday() != target {
		date = date.AddDate(0, 0, 1)
	}
	return date
}
