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

// ExtraSlotRepository manages the pool of freed slots published when staff
// declare themselves unavailable.
type ExtraSlotRepository struct {
	db *sqlx.DB
}

func NewExtraSlotRepository(db *sqlx.DB) *ExtraSlotRepository {
	return &ExtraSlotRepository{db: db}
}

const extraSlotColumns = `id, session_id, course_id, section_id, room_id, day, period_number,
	duration_periods, created_from_id, claimed_by_id, subject_id, created_at, updated_at`

// Upsert publishes a freed slot. Republishing the same slot (same session,
// audience, room, day and period) is a no-op so repeated unavailability
// declarations do not duplicate the pool. Returns true when a new row was
// created.
func (r *ExtraSlotRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, s *models.ExtraClassAvailability) (bool, error) {
	query := `INSERT INTO extra_class_availability (id, session_id, course_id, section_id, room_id,
			day, period_number, duration_periods, created_from_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT ON CONSTRAINT uniq_extra_slot DO NOTHING`

	result, err := exec.ExecContext(ctx, query,
		s.ID, s.SessionID, s.CourseID, s.SectionID, s.RoomID,
		s.Day, s.Period, s.Duration, s.CreatedFrom,
	)
	if err != nil {
		return false, fmt.Errorf("publish extra slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish extra slot rows: %w", err)
	}
	return rows > 0, nil
}

func (r *ExtraSlotRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExtraClassAvailability, error) {
	var s models.ExtraClassAvailability
	query := `SELECT ` + extraSlotColumns + ` FROM extra_class_availability WHERE id = $1`
	if err := sqlx.GetContext(ctx, exec, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find extra slot: %w", err)
	}
	return &s, nil
}

// ListOpenByCourse returns unclaimed slots for a course, optionally narrowed
// to one section (course-wide slots are always included).
func (r *ExtraSlotRepository) ListOpenByCourse(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.ExtraClassAvailability, error) {
	slots := []models.ExtraClassAvailability{}
	if sectionID != nil {
		query := `SELECT ` + extraSlotColumns + ` FROM extra_class_availability
			WHERE session_id = $1 AND course_id = $2 AND (section_id = $3 OR section_id IS NULL)
				AND claimed_by_id IS NULL
			ORDER BY day, period_number`
		if err := r.db.SelectContext(ctx, &slots, query, sessionID, courseID, *sectionID); err != nil {
			return nil, fmt.Errorf("list open extra slots: %w", err)
		}
		return slots, nil
	}
	query := `SELECT ` + extraSlotColumns + ` FROM extra_class_availability
		WHERE session_id = $1 AND course_id = $2 AND claimed_by_id IS NULL
		ORDER BY day, period_number`
	if err := r.db.SelectContext(ctx, &slots, query, sessionID, courseID); err != nil {
		return nil, fmt.Errorf("list open extra slots: %w", err)
	}
	return slots, nil
}

// MarkClaimed stamps the winning entry onto an open slot. The claimed_by_id
// IS NULL guard makes the claim one-shot: when two transactions race, the
// loser sees zero rows updated and gets a slot-claimed conflict.
func (r *ExtraSlotRepository) MarkClaimed(ctx context.Context, exec sqlx.ExtContext, slotID, entryID, subjectID string) error {
	query := `UPDATE extra_class_availability
		SET claimed_by_id = $1, subject_id = $2, updated_at = NOW()
		WHERE id = $3 AND claimed_by_id IS NULL`

	result, err := exec.ExecContext(ctx, query, entryID, subjectID, slotID)
	if err != nil {
		return fmt.Errorf("claim extra slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim extra slot rows: %w", err)
	}
	if rows == 0 {
		return models.NewConflict(models.ReasonSlotClaimed, "extra slot has already been claimed")
	}
	return nil
}

// ExistsOpenAt reports whether an unclaimed slot covers the period for the
// audience, used when approving extra class schedules against the pool.
func (r *ExtraSlotRepository) ExistsOpenAt(ctx context.Context, exec sqlx.ExtContext, sessionID, courseID string, sectionID *string, day slot.Day, period int) (bool, error) {
	var exists bool
	if sectionID != nil {
		query := `SELECT EXISTS (SELECT 1 FROM extra_class_availability
			WHERE session_id = $1 AND course_id = $2 AND (section_id = $3 OR section_id IS NULL)
				AND day = $4 AND claimed_by_id IS NULL
				AND ` + occupiedAt("$5::int") + `)`
		if err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, courseID, *sectionID, day, period); err != nil {
			return false, fmt.Errorf("check open extra slot: %w", err)
		}
		return exists, nil
	}
	query := `SELECT EXISTS (SELECT 1 FROM extra_class_availability
		WHERE session_id = $1 AND course_id = $2 AND day = $3 AND claimed_by_id IS NULL
			AND ` + occupiedAt("$4::int") + `)`
	if err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, courseID, day, period); err != nil {
		return false, fmt.Errorf("check open extra slot: %w", err)
	}
	return exists, nil
}
