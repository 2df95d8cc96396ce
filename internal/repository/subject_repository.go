package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// SubjectRepository reads subjects and the course/section offerings that
// scope where each subject may be placed.
type SubjectRepository struct {
	db *sqlx.DB
}

func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = `id, name, staff_id, semester_id, credits, is_lab, created_at, updated_at`

func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// ListSchedulable returns subjects with a positive credit quota, the
// generator's work list.
func (r *SubjectRepository) ListSchedulable(ctx context.Context) ([]models.Subject, error) {
	subjects := []models.Subject{}
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE credits > 0 ORDER BY name`
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list schedulable subjects: %w", err)
	}
	return subjects, nil
}

// ListOfferings expands a subject into its (course, section) placement
// scopes. A course the subject is offered to without section rows yields one
// course-wide offering with a nil section.
func (r *SubjectRepository) ListOfferings(ctx context.Context, subjectID string) ([]models.SubjectOffering, error) {
	offerings := []models.SubjectOffering{}
	query := `SELECT sc.subject_id, sc.course_id, ss.section_id
		FROM subject_courses sc
		LEFT JOIN subject_sections ss
			ON ss.subject_id = sc.subject_id
			AND ss.section_id IN (SELECT id FROM sections WHERE course_id = sc.course_id)
		WHERE sc.subject_id = $1
		ORDER BY sc.course_id, ss.section_id`

	rows, err := r.db.QueryxContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list subject offerings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.SubjectOffering
		if err := rows.StructScan(&o); err != nil {
			return nil, fmt.Errorf("scan subject offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subject offerings: %w", err)
	}
	return offerings, nil
}

// OfferedInCourse reports whether the subject is offered to the course.
func (r *SubjectRepository) OfferedInCourse(ctx context.Context, exec sqlx.ExtContext, subjectID, courseID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM subject_courses WHERE subject_id = $1 AND course_id = $2)`
	if err := sqlx.GetContext(ctx, exec, &exists, query, subjectID, courseID); err != nil {
		return false, fmt.Errorf("check subject course: %w", err)
	}
	return exists, nil
}

// SectionScoped reports whether the subject restricts itself to named
// sections at all; an unscoped subject may be placed for any section of its
// courses.
func (r *SubjectRepository) SectionScoped(ctx context.Context, exec sqlx.ExtContext, subjectID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM subject_sections WHERE subject_id = $1)`
	if err := sqlx.GetContext(ctx, exec, &exists, query, subjectID); err != nil {
		return false, fmt.Errorf("check subject section scoping: %w", err)
	}
	return exists, nil
}

// OfferedToSection reports whether the subject is offered to the section.
func (r *SubjectRepository) OfferedToSection(ctx context.Context, exec sqlx.ExtContext, subjectID, sectionID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM subject_sections WHERE subject_id = $1 AND section_id = $2)`
	if err := sqlx.GetContext(ctx, exec, &exists, query, subjectID, sectionID); err != nil {
		return false, fmt.Errorf("check subject section: %w", err)
	}
	return exists, nil
}
