package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
)

type StudentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByScope returns the students a placement change affects: the section's
// students, or the whole course when sectionID is nil.
func (r *StudentRepository) ListByScope(ctx context.Context, courseID string, sectionID *string) ([]models.Student, error) {
	students := []models.Student{}
	if sectionID != nil {
		query := `SELECT id, course_id, section_id, full_name, created_at FROM students
			WHERE course_id = $1 AND section_id = $2 ORDER BY full_name`
		if err := r.db.SelectContext(ctx, &students, query, courseID, *sectionID); err != nil {
			return nil, fmt.Errorf("list section students: %w", err)
		}
		return students, nil
	}
	query := `SELECT id, course_id, section_id, full_name, created_at FROM students
		WHERE course_id = $1 ORDER BY full_name`
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}
