package models

import "time"

// Student is a catalog record used only as a notification recipient when a
// claim or cancellation affects their course.
type Student struct {
	ID        string    `db:"id" json:"id"`
	CourseID  *string   `db:"course_id" json:"course_id,omitempty"`
	SectionID *string   `db:"section_id" json:"section_id,omitempty"`
	FullName  string    `db:"full_name" json:"full_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
