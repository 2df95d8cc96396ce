package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type UnavailabilityRepository struct {
	db *sqlx.DB
}

func NewUnavailabilityRepository(db *sqlx.DB) *UnavailabilityRepository {
	return &UnavailabilityRepository{db: db}
}

const unavailabilityColumns = `id, session_id, staff_id, day, period_number, duration_periods,
	reason, recurring_weekly, repeat_until, exception_date, created_at`

func (r *UnavailabilityRepository) Create(ctx context.Context, exec sqlx.ExtContext, u *models.StaffUnavailability) error {
	query := `INSERT INTO staff_unavailability (id, session_id, staff_id, day, period_number, duration_periods,
			reason, recurring_weekly, repeat_until, exception_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at`

	err := exec.QueryRowxContext(ctx, query,
		u.ID, u.SessionID, u.StaffID, u.Day, u.Period, u.Duration,
		u.Reason, u.RecurringWeekly, u.RepeatUntil, u.ExceptionDate,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert staff unavailability: %w", err)
	}
	return nil
}

func (r *UnavailabilityRepository) FindByID(ctx context.Context, id string) (*models.StaffUnavailability, error) {
	var u models.StaffUnavailability
	query := `SELECT ` + unavailabilityColumns + ` FROM staff_unavailability WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find staff unavailability: %w", err)
	}
	return &u, nil
}

func (r *UnavailabilityRepository) ListByStaff(ctx context.Context, sessionID, staffID string) ([]models.StaffUnavailability, error) {
	rows := []models.StaffUnavailability{}
	query := `SELECT ` + unavailabilityColumns + ` FROM staff_unavailability
		WHERE session_id = $1 AND staff_id = $2
		ORDER BY day, period_number`
	if err := r.db.SelectContext(ctx, &rows, query, sessionID, staffID); err != nil {
		return nil, fmt.Errorf("list staff unavailability: %w", err)
	}
	return rows, nil
}

// ListForStaffDay returns every declared absence for the staff member on the
// weekday. The caller filters by AppliesOn and Covers; recurrence windows
// depend on the date being scheduled, which the database does not know.
func (r *UnavailabilityRepository) ListForStaffDay(ctx context.Context, exec sqlx.ExtContext, sessionID, staffID string, day slot.Day) ([]models.StaffUnavailability, error) {
	rows := []models.StaffUnavailability{}
	query := `SELECT ` + unavailabilityColumns + ` FROM staff_unavailability
		WHERE session_id = $1 AND staff_id = $2 AND day = $3
		ORDER BY period_number`
	if err := sqlx.SelectContext(ctx, exec, &rows, query, sessionID, staffID, day); err != nil {
		return nil, fmt.Errorf("list staff day unavailability: %w", err)
	}
	return rows, nil
}

func (r *UnavailabilityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM staff_unavailability WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete staff unavailability: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete staff unavailability rows: %w", err)
	}
	if rows == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}
