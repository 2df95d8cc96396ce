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

type CourseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	query := `SELECT id, name, created_at, updated_at FROM courses WHERE id = $1`
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	courses := []models.Course{}
	query := `SELECT id, name, created_at, updated_at FROM courses ORDER BY name`
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (r *CourseRepository) FindSection(ctx context.Context, id string) (*models.Section, error) {
	var section models.Section
	query := `SELECT id, course_id, name, created_at, updated_at FROM sections WHERE id = $1`
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find section: %w", err)
	}
	return &section, nil
}

func (r *CourseRepository) ListSections(ctx context.Context, courseID string) ([]models.Section, error) {
	sections := []models.Section{}
	query := `SELECT id, course_id, name, created_at, updated_at FROM sections
		WHERE course_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}
