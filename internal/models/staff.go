package models

import "time"

// Staff is an instructor record supplied by the catalog store.
type Staff struct {
	ID        string    `db:"id" json:"id"`
	CourseID  *string   `db:"course_id" json:"course_id,omitempty"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
