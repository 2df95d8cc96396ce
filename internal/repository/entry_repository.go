package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// EntryRepository persists timetable entries. Mutating methods take a
// sqlx.ExtContext so callers can run them inside a transaction alongside
// the placement checks.
type EntryRepository struct {
	db *sqlx.DB
}

func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// DB exposes the underlying handle for callers that open transactions.
func (r *EntryRepository) DB() *sqlx.DB {
	return r.db
}

const entryColumns = `id, session_id, course_id, section_id, subject_id, staff_id, room_id,
	day, period_number, duration_periods, is_lab, created_at, updated_at`

// mapUniqueViolation converts a Postgres duplicate-key error on one of the
// slot exclusivity constraints into the conflict the validator would have
// produced had it won the race. Returns nil for unrelated errors.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "uniq_staff_slot":
		return models.NewConflict(models.ReasonStaffConflict, "staff member is already scheduled in this slot")
	case "uniq_room_slot":
		return models.NewConflict(models.ReasonRoomConflict, "room is already occupied in this slot")
	case "uniq_section_slot":
		return models.NewConflict(models.ReasonSectionConflict, "section is already scheduled in this slot")
	}
	return nil
}

func (r *EntryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	query := `INSERT INTO timetable_entries (id, session_id, course_id, section_id, subject_id, staff_id, room_id,
			day, period_number, duration_periods, is_lab, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := exec.QueryRowxContext(ctx, query,
		entry.ID, entry.SessionID, entry.CourseID, entry.SectionID, entry.SubjectID,
		entry.StaffID, entry.RoomID, entry.Day, entry.Period, entry.Duration, entry.IsLab,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if conflict := mapUniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	return nil
}

func (r *EntryRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	query := `UPDATE timetable_entries
		SET subject_id = $1, staff_id = $2, room_id = $3, day = $4,
			period_number = $5, duration_periods = $6, is_lab = $7, updated_at = NOW()
		WHERE id = $8`

	result, err := exec.ExecContext(ctx, query,
		entry.SubjectID, entry.StaffID, entry.RoomID, entry.Day,
		entry.Period, entry.Duration, entry.IsLab, entry.ID,
	)
	if err != nil {
		if conflict := mapUniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("update timetable entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timetable entry rows: %w", err)
	}
	if rows == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

func (r *EntryRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM timetable_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable entry rows: %w", err)
	}
	if rows == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// DeleteBySession removes every entry in the session and reports how many
// rows were erased.
func (r *EntryRepository) DeleteBySession(ctx context.Context, exec sqlx.ExtContext, sessionID string) (int64, error) {
	result, err := exec.ExecContext(ctx, `DELETE FROM timetable_entries WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("erase session timetable: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("erase session timetable rows: %w", err)
	}
	return rows, nil
}

func (r *EntryRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	var entry models.TimetableEntry
	query := `SELECT ` + entryColumns + ` FROM timetable_entries WHERE id = $1`
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("find timetable entry: %w", err)
	}
	return &entry, nil
}

func (r *EntryRepository) ListBySession(ctx context.Context, sessionID string) ([]models.TimetableEntry, error) {
	entries := []models.TimetableEntry{}
	query := `SELECT ` + entryColumns + ` FROM timetable_entries
		WHERE session_id = $1
		ORDER BY day, period_number`
	if err := r.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session timetable: %w", err)
	}
	return entries, nil
}

// ListForScope returns the weekly grid for a section, or for the whole
// course when sectionID is nil (course-wide entries are included either way).
func (r *EntryRepository) ListForScope(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.TimetableEntry, error) {
	entries := []models.TimetableEntry{}
	if sectionID != nil {
		query := `SELECT ` + entryColumns + ` FROM timetable_entries
			WHERE session_id = $1 AND course_id = $2 AND (section_id = $3 OR section_id IS NULL)
			ORDER BY day, period_number`
		if err := r.db.SelectContext(ctx, &entries, query, sessionID, courseID, *sectionID); err != nil {
			return nil, fmt.Errorf("list section timetable: %w", err)
		}
		return entries, nil
	}
	query := `SELECT ` + entryColumns + ` FROM timetable_entries
		WHERE session_id = $1 AND course_id = $2
		ORDER BY day, period_number`
	if err := r.db.SelectContext(ctx, &entries, query, sessionID, courseID); err != nil {
		return nil, fmt.Errorf("list course timetable: %w", err)
	}
	return entries, nil
}

func (r *EntryRepository) ListByStaff(ctx context.Context, sessionID, staffID string) ([]models.TimetableEntry, error) {
	entries := []models.TimetableEntry{}
	query := `SELECT ` + entryColumns + ` FROM timetable_entries
		WHERE session_id = $1 AND staff_id = $2
		ORDER BY day, period_number`
	if err := r.db.SelectContext(ctx, &entries, query, sessionID, staffID); err != nil {
		return nil, fmt.Errorf("list staff timetable: %w", err)
	}
	return entries, nil
}

// ListByStaffDay returns a staff member's entries for one weekday, used by
// the unavailability republisher to find the classes a declared absence
// covers.
func (r *EntryRepository) ListByStaffDay(ctx context.Context, exec sqlx.ExtContext, sessionID, staffID string, day slot.Day) ([]models.TimetableEntry, error) {
	entries := []models.TimetableEntry{}
	query := `SELECT ` + entryColumns + ` FROM timetable_entries
		WHERE session_id = $1 AND staff_id = $2 AND day = $3
		ORDER BY period_number`
	if err := sqlx.SelectContext(ctx, exec, &entries, query, sessionID, staffID, day); err != nil {
		return nil, fmt.Errorf("list staff day timetable: %w", err)
	}
	return entries, nil
}

// occupiedAt matches any entry whose span covers the period bound to the
// given placeholder. The span of a row is
// [period_number, period_number + duration_periods).
func occupiedAt(param string) string {
	return `period_number <= ` + param + ` AND period_number + duration_periods > ` + param
}

func existsQuery(where string) string {
	return `SELECT EXISTS (SELECT 1 FROM timetable_entries WHERE ` + where + `)`
}

func (r *EntryRepository) ExistsStaffAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, staffID, excludeID string) (bool, error) {
	var exists bool
	query := existsQuery(`session_id = $1 AND day = $2 AND staff_id = $3
		AND ` + occupiedAt("$4::int") + ` AND ($5 = '' OR id <> $5::uuid)`)
	err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, day, staffID, period, excludeID)
	if err != nil {
		return false, fmt.Errorf("check staff occupancy: %w", err)
	}
	return exists, nil
}

func (r *EntryRepository) ExistsRoomAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, roomID, excludeID string) (bool, error) {
	var exists bool
	query := existsQuery(`session_id = $1 AND day = $2 AND room_id = $3
		AND ` + occupiedAt("$4::int") + ` AND ($5 = '' OR id <> $5::uuid)`)
	err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, day, roomID, period, excludeID)
	if err != nil {
		return false, fmt.Errorf("check room occupancy: %w", err)
	}
	return exists, nil
}

// ExistsScopeAt reports whether the audience of a candidate entry is busy at
// the period. For a sectioned candidate that means the same section or a
// course-wide entry of the same course; for a sectionless candidate any
// entry of the course counts, since a course-wide class includes every
// section's students.
func (r *EntryRepository) ExistsScopeAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, courseID string, sectionID *string, excludeID string) (bool, error) {
	var exists bool
	if sectionID != nil {
		query := existsQuery(`session_id = $1 AND day = $2 AND course_id = $3
			AND (section_id = $4 OR section_id IS NULL)
			AND ` + occupiedAt("$5::int") + ` AND ($6 = '' OR id <> $6::uuid)`)
		err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, day, courseID, *sectionID, period, excludeID)
		if err != nil {
			return false, fmt.Errorf("check section occupancy: %w", err)
		}
		return exists, nil
	}
	query := existsQuery(`session_id = $1 AND day = $2 AND course_id = $3
		AND ` + occupiedAt("$4::int") + ` AND ($5 = '' OR id <> $5::uuid)`)
	err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, day, courseID, period, excludeID)
	if err != nil {
		return false, fmt.Errorf("check course occupancy: %w", err)
	}
	return exists, nil
}

// ExistsSubjectOnDay reports whether the subject already meets that day for
// the same audience.
func (r *EntryRepository) ExistsSubjectOnDay(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, subjectID, courseID string, sectionID *string, excludeID string) (bool, error) {
	var exists bool
	if sectionID != nil {
		query := existsQuery(`session_id = $1 AND day = $2 AND subject_id = $3 AND section_id = $4
			AND ($5 = '' OR id <> $5::uuid)`)
		err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, day, subjectID, *sectionID, excludeID)
		if err != nil {
			return false, fmt.Errorf("check subject day: %w", err)
		}
		return exists, nil
	}
	query := existsQuery(`session_id = $1 AND day = $2 AND subject_id = $3 AND course_id = $4 AND section_id IS NULL
		AND ($5 = '' OR id <> $5::uuid)`)
	err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, day, subjectID, courseID, excludeID)
	if err != nil {
		return false, fmt.Errorf("check subject day: %w", err)
	}
	return exists, nil
}

// ExistsSubjectAt reports whether the subject occupies the given period
// anywhere in the course. Unlike the one-per-day rule this looks across
// sections: it backs the rule against the same subject running back-to-back
// for neighboring groups.
func (r *EntryRepository) ExistsSubjectAt(ctx context.Context, exec sqlx.ExtContext, sessionID string, day slot.Day, period int, subjectID, courseID, excludeID string) (bool, error) {
	var exists bool
	query := existsQuery(`session_id = $1 AND day = $2 AND subject_id = $3 AND course_id = $4
		AND ` + occupiedAt("$5::int") + ` AND ($6 = '' OR id <> $6::uuid)`)
	err := sqlx.GetContext(ctx, exec, &exists, query, sessionID, day, subjectID, courseID, period, excludeID)
	if err != nil {
		return false, fmt.Errorf("check subject adjacency: %w", err)
	}
	return exists, nil
}

// CountForSubjectScope counts how many weekly meetings the subject already
// has for the audience, for the credit quota check.
func (r *EntryRepository) CountForSubjectScope(ctx context.Context, exec sqlx.ExtContext, sessionID, subjectID, courseID string, sectionID *string, excludeID string) (int, error) {
	var count int
	if sectionID != nil {
		query := `SELECT COUNT(*) FROM timetable_entries
			WHERE session_id = $1 AND subject_id = $2 AND section_id = $3
			AND ($4 = '' OR id <> $4::uuid)`
		if err := sqlx.GetContext(ctx, exec, &count, query, sessionID, subjectID, *sectionID, excludeID); err != nil {
			return 0, fmt.Errorf("count subject meetings: %w", err)
		}
		return count, nil
	}
	query := `SELECT COUNT(*) FROM timetable_entries
		WHERE session_id = $1 AND subject_id = $2 AND course_id = $3 AND section_id IS NULL
		AND ($4 = '' OR id <> $4::uuid)`
	if err := sqlx.GetContext(ctx, exec, &count, query, sessionID, subjectID, courseID, excludeID); err != nil {
		return 0, fmt.Errorf("count subject meetings: %w", err)
	}
	return count, nil
}
