package models

import (
	"time"

	"github.com/campuskit/timetable-api/internal/slot"
)

// ExtraClassAvailability is a reusable open slot published when a scheduled
// teacher becomes unavailable. Unique per (session, day, period, room) and
// per (session, day, period, course); claimed exactly once.
type ExtraClassAvailability struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	SectionID   *string   `db:"section_id" json:"section_id,omitempty"`
	Day         slot.Day  `db:"day" json:"day"`
	Period      int       `db:"period_number" json:"period_number"`
	Duration    int       `db:"duration_periods" json:"duration_periods"`
	RoomID      string    `db:"room_id" json:"room_id"`
	CreatedFrom *string   `db:"created_from_id" json:"created_from_id,omitempty"`
	ClaimedBy   *string   `db:"claimed_by_id" json:"claimed_by_id,omitempty"`
	SubjectID   *string   `db:"subject_id" json:"subject_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Open reports whether the slot is still claimable.
func (a *ExtraClassAvailability) Open() bool {
	return a.ClaimedBy == nil
}

// ExtraClassRequest statuses.
const (
	ExtraRequestStatusRequested = "requested"
	ExtraRequestStatusApproved  = "approved"
	ExtraRequestStatusRejected  = "rejected"
)

// ExtraClassRequest is an out-of-band request by staff for an additional
// meeting, pending an administrator's decision.
type ExtraClassRequest struct {
	ID              string    `db:"id" json:"id"`
	StaffID         string    `db:"staff_id" json:"staff_id"`
	SubjectID       string    `db:"subject_id" json:"subject_id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	SessionID       string    `db:"session_id" json:"session_id"`
	PreferredDay    *slot.Day `db:"preferred_day" json:"preferred_day,omitempty"`
	PreferredPeriod *int      `db:"preferred_period" json:"preferred_period,omitempty"`
	Reason          string    `db:"reason" json:"reason"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ExtraClassSchedule statuses.
const (
	ExtraScheduleStatusPending   = "pending"
	ExtraScheduleStatusApproved  = "approved"
	ExtraScheduleStatusScheduled = "scheduled"
	ExtraScheduleStatusRejected  = "rejected"
	ExtraScheduleStatusCancelled = "cancelled"
)

// ExtraClassSchedule is a wall-clock extra meeting. On approval it may be
// materialized into a TimetableEntry by bucketing the start hour into a
// period; EntryID records the materialized placement.
type ExtraClassSchedule struct {
	ID              string    `db:"id" json:"id"`
	StaffID         string    `db:"staff_id" json:"staff_id"`
	SubjectID       string    `db:"subject_id" json:"subject_id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	SessionID       string    `db:"session_id" json:"session_id"`
	RoomID          *string   `db:"room_id" json:"room_id,omitempty"`
	StartAt         time.Time `db:"start_at" json:"start_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Status          string    `db:"status" json:"status"`
	EntryID         *string   `db:"entry_id" json:"entry_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// PeriodForTime maps a wall-clock start to its period bucket: 9:00-15:00,
// one hour per period. The second return is false outside teaching hours.
func PeriodForTime(t time.Time) (int, bool) {
	hour := t.Hour()
	if hour < 9 || hour > 14 {
		return 0, false
	}
	return hour - 8, true
}

// DayForTime maps a wall-clock start to a teaching day; false on weekends.
func DayForTime(t time.Time) (slot.Day, bool) {
	switch t.Weekday() {
	case time.Monday:
		return slot.Monday, true
	case time.Tuesday:
		return slot.Tuesday, true
	case time.Wednesday:
		return slot.Wednesday, true
	case time.Thursday:
		return slot.Thursday, true
	case time.Friday:
		return slot.Friday, true
	}
	return "", false
}
