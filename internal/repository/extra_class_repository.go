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

// ExtraClassRepository stores staff extra class requests and the wall-clock
// schedules raised from them.
type ExtraClassRepository struct {
	db *sqlx.DB
}

func NewExtraClassRepository(db *sqlx.DB) *ExtraClassRepository {
	return &ExtraClassRepository{db: db}
}

const requestColumns = `id, staff_id, subject_id, course_id, session_id,
	preferred_day, preferred_period, reason, status, created_at, updated_at`

const scheduleColumns = `id, staff_id, subject_id, course_id, session_id, room_id,
	start_at, duration_minutes, status, entry_id, created_at, updated_at`

func (r *ExtraClassRepository) CreateRequest(ctx context.Context, req *models.ExtraClassRequest) error {
	query := `INSERT INTO extra_class_requests (id, staff_id, subject_id, course_id, session_id,
			preferred_day, preferred_period, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.StaffID, req.SubjectID, req.CourseID, req.SessionID,
		req.PreferredDay, req.PreferredPeriod, req.Reason, req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert extra class request: %w", err)
	}
	return nil
}

func (r *ExtraClassRepository) FindRequest(ctx context.Context, id string) (*models.ExtraClassRequest, error) {
	var req models.ExtraClassRequest
	query := `SELECT ` + requestColumns + ` FROM extra_class_requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find extra class request: %w", err)
	}
	return &req, nil
}

func (r *ExtraClassRepository) ListRequests(ctx context.Context, sessionID string, status string) ([]models.ExtraClassRequest, error) {
	reqs := []models.ExtraClassRequest{}
	query := `SELECT ` + requestColumns + ` FROM extra_class_requests
		WHERE session_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &reqs, query, sessionID, status); err != nil {
		return nil, fmt.Errorf("list extra class requests: %w", err)
	}
	return reqs, nil
}

func (r *ExtraClassRepository) UpdateRequestStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE extra_class_requests SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update extra class request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update extra class request rows: %w", err)
	}
	if rows == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

func (r *ExtraClassRepository) CreateSchedule(ctx context.Context, s *models.ExtraClassSchedule) error {
	query := `INSERT INTO extra_class_schedules (id, staff_id, subject_id, course_id, session_id,
			room_id, start_at, duration_minutes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		s.ID, s.StaffID, s.SubjectID, s.CourseID, s.SessionID,
		s.RoomID, s.StartAt, s.DurationMinutes, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert extra class schedule: %w", err)
	}
	return nil
}

func (r *ExtraClassRepository) FindSchedule(ctx context.Context, id string) (*models.ExtraClassSchedule, error) {
	var s models.ExtraClassSchedule
	query := `SELECT ` + scheduleColumns + ` FROM extra_class_schedules WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find extra class schedule: %w", err)
	}
	return &s, nil
}

func (r *ExtraClassRepository) ListSchedulesByStaff(ctx context.Context, sessionID, staffID string) ([]models.ExtraClassSchedule, error) {
	schedules := []models.ExtraClassSchedule{}
	query := `SELECT ` + scheduleColumns + ` FROM extra_class_schedules
		WHERE session_id = $1 AND staff_id = $2
		ORDER BY start_at`
	if err := r.db.SelectContext(ctx, &schedules, query, sessionID, staffID); err != nil {
		return nil, fmt.Errorf("list extra class schedules: %w", err)
	}
	return schedules, nil
}

// UpdateScheduleStatus moves a schedule through its workflow; entryID is set
// once the schedule is materialized as a timetable entry.
func (r *ExtraClassRepository) UpdateScheduleStatus(ctx context.Context, exec sqlx.ExtContext, id, status string, entryID *string) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE extra_class_schedules SET status = $1, entry_id = $2, updated_at = NOW() WHERE id = $3`,
		status, entryID, id)
	if err != nil {
		return fmt.Errorf("update extra class schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update extra class schedule rows: %w", err)
	}
	if rows == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}
