package models

// Semester is an ordinal term number used to tag subjects and students.
// The conflict validator does not constrain on it.
type Semester struct {
	ID     string `db:"id" json:"id"`
	Number int    `db:"number" json:"number"`
	Label  string `db:"label" json:"label"`
}
