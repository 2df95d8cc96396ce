package dto

import (
	"time"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
)

// CreateEntryRequest places one class. StaffID is optional and defaults to
// the subject's teacher; period bounds and duration rules are enforced by
// the placement validator so violations come back as tagged conflicts, not
// bind errors.
type CreateEntryRequest struct {
	SessionID string  `json:"session_id" binding:"required,uuid"`
	CourseID  string  `json:"course_id" binding:"required,uuid"`
	SectionID *string `json:"section_id" binding:"omitempty,uuid"`
	SubjectID string  `json:"subject_id" binding:"required,uuid"`
	StaffID   *string `json:"staff_id" binding:"omitempty,uuid"`
	RoomID    string  `json:"room_id" binding:"required,uuid"`
	Day       string  `json:"day" binding:"required"`
	Period    int     `json:"period" binding:"required"`
}

// UpdateEntryRequest moves or reassigns an existing entry. Omitted fields
// keep their current value.
type UpdateEntryRequest struct {
	RoomID *string `json:"room_id" binding:"omitempty,uuid"`
	Day    *string `json:"day"`
	Period *int    `json:"period"`
}

// GenerateRequest runs the automatic generator for a session.
type GenerateRequest struct {
	SessionID string `json:"session_id" binding:"required,uuid"`
}

// GenerationSummary reports what one generator run did.
type GenerationSummary struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// EraseSummary reports how many placements an erase removed.
type EraseSummary struct {
	Removed int64 `json:"removed"`
}

// GridCell is one rendered slot of a weekly grid.
type GridCell struct {
	EntryID     string   `json:"entry_id"`
	SubjectID   string   `json:"subject_id"`
	SubjectName string   `json:"subject_name"`
	StaffName   string   `json:"staff_name"`
	RoomName    string   `json:"room_name"`
	Day         slot.Day `json:"day"`
	Period      int      `json:"period"`
	Duration    int      `json:"duration"`
	Label       string   `json:"label"`
	IsLab       bool     `json:"is_lab"`
}

// RecordUnavailabilityRequest declares a staff absence window.
type RecordUnavailabilityRequest struct {
	SessionID       string     `json:"session_id" binding:"required,uuid"`
	StaffID         string     `json:"staff_id" binding:"required,uuid"`
	Day             string     `json:"day" binding:"required"`
	Period          int        `json:"period" binding:"required"`
	Duration        int        `json:"duration"`
	Reason          string     `json:"reason"`
	RecurringWeekly *bool      `json:"recurring_weekly"`
	RepeatUntil     *time.Time `json:"repeat_until"`
	ExceptionDate   *time.Time `json:"exception_date"`
}

// UnavailabilityResponse returns the stored window plus how many freed
// slots the republisher put into the extra class pool.
type UnavailabilityResponse struct {
	Unavailability *models.StaffUnavailability `json:"unavailability"`
	PublishedSlots int                         `json:"published_slots"`
}

// ClaimRequest claims a published extra slot for a staff member and one of
// their subjects, optionally overriding the slot's room.
type ClaimRequest struct {
	StaffID   string  `json:"staff_id" binding:"required,uuid"`
	SubjectID string  `json:"subject_id" binding:"required,uuid"`
	RoomID    *string `json:"room_id" binding:"omitempty,uuid"`
}

// CreateExtraRequestRequest files a staff request for an additional class.
type CreateExtraRequestRequest struct {
	SessionID       string  `json:"session_id" binding:"required,uuid" validate:"required,uuid"`
	StaffID         string  `json:"staff_id" binding:"required,uuid" validate:"required,uuid"`
	SubjectID       string  `json:"subject_id" binding:"required,uuid" validate:"required,uuid"`
	CourseID        string  `json:"course_id" binding:"required,uuid" validate:"required,uuid"`
	PreferredDay    *string `json:"preferred_day"`
	PreferredPeriod *int    `json:"preferred_period"`
	Reason          string  `json:"reason" validate:"max=500"`
}

// CreateExtraScheduleRequest proposes a wall-clock extra meeting.
type CreateExtraScheduleRequest struct {
	SessionID       string    `json:"session_id" binding:"required,uuid" validate:"required,uuid"`
	StaffID         string    `json:"staff_id" binding:"required,uuid" validate:"required,uuid"`
	SubjectID       string    `json:"subject_id" binding:"required,uuid" validate:"required,uuid"`
	CourseID        string    `json:"course_id" binding:"required,uuid" validate:"required,uuid"`
	RoomID          *string   `json:"room_id" binding:"omitempty,uuid" validate:"omitempty,uuid"`
	StartAt         time.Time `json:"start_at" binding:"required" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=15,max=240"`
}
