package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/campuskit/timetable-api/internal/slot"
)

// TimetableEntry is a placement: one subject meeting at a fixed weekly slot.
// SectionID is nil when the course has no sections; the section-or-course
// scope rules in the validator fall back to CourseID in that case.
type TimetableEntry struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	SectionID *string   `db:"section_id" json:"section_id,omitempty"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	StaffID   string    `db:"staff_id" json:"staff_id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	Day       slot.Day  `db:"day" json:"day"`
	Period    int       `db:"period_number" json:"period_number"`
	Duration  int       `db:"duration_periods" json:"duration_periods"`
	IsLab     bool      `db:"is_lab" json:"is_lab"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Span returns the periods the entry occupies.
func (e *TimetableEntry) Span() []int {
	return slot.Span(e.Period, e.Duration)
}

// Occupies reports whether the entry covers the given period.
func (e *TimetableEntry) Occupies(period int) bool {
	return period >= e.Period && period < e.Period+e.Duration
}

// PlacementMode tags the validation context of a candidate entry. Filling a
// published extra slot intentionally waives the one-per-day, adjacency,
// quota and section/course-exclusivity rules; every other rule still holds.
type PlacementMode int

const (
	// PlacementNormal applies the full rule set.
	PlacementNormal PlacementMode = iota
	// PlacementExtraFill is a make-up class claiming a published extra slot.
	PlacementExtraFill
)

func (m PlacementMode) String() string {
	if m == PlacementExtraFill {
		return "extra-fill"
	}
	return "normal"
}

// ConflictReason is the machine-distinguishable tag carried by a rejection.
type ConflictReason string

const (
	ReasonSubjectCourseMismatch  ConflictReason = "subject-course-mismatch"
	ReasonSubjectSectionMismatch ConflictReason = "subject-section-mismatch"
	ReasonStaffMismatch          ConflictReason = "staff-mismatch"
	ReasonBadPeriod              ConflictReason = "bad-period"
	ReasonBadDuration            ConflictReason = "bad-duration"
	ReasonLabDuration            ConflictReason = "lab-duration"
	ReasonSpanOverflow           ConflictReason = "span-overflow"
	ReasonUnavailable            ConflictReason = "unavailable"
	ReasonStaffConflict          ConflictReason = "staff-conflict"
	ReasonRoomConflict           ConflictReason = "room-conflict"
	ReasonSectionConflict        ConflictReason = "section-conflict"
	ReasonOnePerDay              ConflictReason = "one-per-day"
	ReasonAdjacency              ConflictReason = "adjacency"
	ReasonQuotaExceeded          ConflictReason = "quota-exceeded"
	ReasonSlotClaimed            ConflictReason = "slot-claimed"
)

// SlotSuggestion is a feasible alternative (day, period) offered alongside a
// conflict rejection.
type SlotSuggestion struct {
	Day    slot.Day `json:"day"`
	Period int      `json:"period"`
}

func (s SlotSuggestion) String() string {
	return fmt.Sprintf("%s P%d", s.Day, s.Period)
}

// PlacementConflictError is the reject half of the validator contract: a
// reason tag, a human message and, for resource conflicts, alternative slots.
type PlacementConflictError struct {
	Reason      ConflictReason   `json:"reason"`
	Message     string           `json:"message"`
	Suggestions []SlotSuggestion `json:"suggestions,omitempty"`
}

// Error implements the error interface.
func (e *PlacementConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Suggestions) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Suggestions))
	for _, s := range e.Suggestions {
		parts = append(parts, s.String())
	}
	return fmt.Sprintf("%s. Suggested alternatives: %s", e.Message, strings.Join(parts, ", "))
}

// NewConflict builds a rejection with a formatted message.
func NewConflict(reason ConflictReason, format string, args ...interface{}) *PlacementConflictError {
	return &PlacementConflictError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// CoverageRow reports scheduled-vs-quota state for one subject scope.
type CoverageRow struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	CourseID    string  `json:"course_id"`
	SectionID   *string `json:"section_id,omitempty"`
	Scheduled   int     `json:"scheduled"`
	Credits     int     `json:"credits"`
	Status      string  `json:"status"` // ok | under | over
}
