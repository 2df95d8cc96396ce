package models

import (
	"strings"
	"time"
)

// Subject is a taught unit: one owning staff member, a weekly credit quota,
// and the courses/sections it is offered to (kept in join tables, queried via
// the subject repository). Credits is the maximum number of weekly placements
// per subject per section (or per course when the subject has no sections);
// zero excludes the subject from generation.
type Subject struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	StaffID    string    `db:"staff_id" json:"staff_id"`
	SemesterID *string   `db:"semester_id" json:"semester_id,omitempty"`
	Credits    int       `db:"credits" json:"credits"`
	IsLab      *bool     `db:"is_lab" json:"is_lab,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Lab reports whether the subject is taught as a two-period lab block.
// The explicit attribute wins; rows migrated from the legacy system have it
// unset and fall back to the old name convention ("lab"/"practical").
func (s *Subject) Lab() bool {
	if s.IsLab != nil {
		return *s.IsLab
	}
	name := strings.ToLower(s.Name)
	return strings.Contains(name, "lab") || strings.Contains(name, "practical")
}

// Duration returns the number of consecutive periods one meeting of the
// subject occupies.
func (s *Subject) Duration() int {
	if s.Lab() {
		return 2
	}
	return 1
}

// SubjectOffering is one (course, section) scope a subject is offered to.
// SectionID is nil when the subject is offered course-wide.
type SubjectOffering struct {
	SubjectID string  `db:"subject_id" json:"subject_id"`
	CourseID  string  `db:"course_id" json:"course_id"`
	SectionID *string `db:"section_id" json:"section_id,omitempty"`
}
