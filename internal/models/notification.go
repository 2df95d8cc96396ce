package models

import "time"

// StaffNotification is a plain-text message delivered to one staff member.
// Content is implementation-defined text, not a structured contract.
type StaffNotification struct {
	ID        string    `db:"id" json:"id"`
	StaffID   string    `db:"staff_id" json:"staff_id"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StudentNotification is a plain-text message delivered to one student.
type StudentNotification struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
