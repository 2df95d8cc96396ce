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

type StaffRepository struct {
	db *sqlx.DB
}

func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, course_id, full_name, email, created_at, updated_at`

func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	var staff models.Staff
	query := `SELECT ` + staffColumns + ` FROM staff WHERE id = $1`
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find staff: %w", err)
	}
	return &staff, nil
}

func (r *StaffRepository) List(ctx context.Context) ([]models.Staff, error) {
	members := []models.Staff{}
	query := `SELECT ` + staffColumns + ` FROM staff ORDER BY full_name`
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return members, nil
}

func (r *StaffRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Staff, error) {
	members := []models.Staff{}
	query := `SELECT ` + staffColumns + ` FROM staff WHERE course_id = $1 ORDER BY full_name`
	if err := r.db.SelectContext(ctx, &members, query, courseID); err != nil {
		return nil, fmt.Errorf("list course staff: %w", err)
	}
	return members, nil
}
