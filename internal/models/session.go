package models

import "time"

// Session is an academic term bounded by start and end dates. Sessions are
// immutable once created; every placement references one.
type Session struct {
	ID        string    `db:"id" json:"id"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
