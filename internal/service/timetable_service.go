package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// txBeginner is the database handle services run on: plain queries plus the
// ability to open a transaction. *sqlx.DB satisfies it.
type txBeginner interface {
	sqlx.ExtContext
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type entryStore interface {
	placementStore
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	DeleteBySession(ctx context.Context, exec sqlx.ExtContext, sessionID string) (int64, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	ListForScope(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.TimetableEntry, error)
	ListByStaff(ctx context.Context, sessionID, staffID string) ([]models.TimetableEntry, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.TimetableEntry, error)
}

type subjectStore interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListSchedulable(ctx context.Context) ([]models.Subject, error)
	ListOfferings(ctx context.Context, subjectID string) ([]models.SubjectOffering, error)
}

type gridCache interface {
	GetGrid(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.TimetableEntry, error)
	SetGrid(ctx context.Context, sessionID, courseID string, sectionID *string, entries []models.TimetableEntry) error
	InvalidateCourse(ctx context.Context, sessionID, courseID string) error
}

type sideEffects interface {
	NotifyStaff(staffID, message string)
	NotifyScope(courseID string, sectionID *string, message string)
	Audit(actorID *string, action string, entryID *string, details string)
}

// TimetableService owns manual placements and the read paths over the grid.
type TimetableService struct {
	db        txBeginner
	entries   entryStore
	subjects  subjectStore
	validator *PlacementValidator
	cache     gridCache
	effects   sideEffects
	metrics   *Metrics
	logger    *zap.Logger
}

func NewTimetableService(db txBeginner, entries entryStore, subjects subjectStore, validator *PlacementValidator, cache gridCache, effects sideEffects, metrics *Metrics, logger *zap.Logger) *TimetableService {
	return &TimetableService{
		db:        db,
		entries:   entries,
		subjects:  subjects,
		validator: validator,
		cache:     cache,
		effects:   effects,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateEntry validates and commits one placement atomically. The conflict
// decision and the insert share a transaction; a duplicate-key race still
// surfaces as the same tagged conflict the validator would have returned.
func (s *TimetableService) CreateEntry(ctx context.Context, actorID *string, req dto.CreateEntryRequest) (*models.TimetableEntry, error) {
	day := slot.Day(req.Day)
	if !slot.ValidDay(day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teaching day %q", req.Day))
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}

	staffID := subject.StaffID
	if req.StaffID != nil {
		staffID = *req.StaffID
	}

	entry := &models.TimetableEntry{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		CourseID:  req.CourseID,
		SectionID: req.SectionID,
		SubjectID: req.SubjectID,
		StaffID:   staffID,
		RoomID:    req.RoomID,
		Day:       day,
		Period:    req.Period,
		Duration:  subject.Duration(),
		IsLab:     subject.Lab(),
	}

	if err := s.place(ctx, entry, subject, models.PlacementNormal, ""); err != nil {
		s.observeRejection(err)
		return nil, err
	}
	s.metrics.PlacementAccepted()

	s.invalidate(ctx, entry.SessionID, entry.CourseID)
	s.effects.Audit(actorID, models.AuditActionSchedule, &entry.ID,
		fmt.Sprintf("scheduled %s on %s period %d", subject.Name, entry.Day, entry.Period))
	s.effects.NotifyScope(entry.CourseID, entry.SectionID,
		fmt.Sprintf("New class: %s on %s, period %d (%s)", subject.Name, entry.Day, entry.Period, slot.Label(entry.Period)))
	return entry, nil
}

func (s *TimetableService) place(ctx context.Context, entry *models.TimetableEntry, subject *models.Subject, mode models.PlacementMode, excludeID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin placement tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.validator.Validate(ctx, tx, entry, subject, mode, excludeID); err != nil {
		return err
	}
	if err := s.entries.Create(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit placement: %w", err)
	}
	return nil
}

// UpdateEntry moves or reassigns an entry. The entry's own occupancy is
// excluded from the conflict checks so moving a class within its span works.
func (s *TimetableService) UpdateEntry(ctx context.Context, actorID *string, id string, req dto.UpdateEntryRequest) (*models.TimetableEntry, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, entry.SubjectID)
	if err != nil {
		return nil, err
	}

	if req.RoomID != nil {
		entry.RoomID = *req.RoomID
	}
	if req.Day != nil {
		day := slot.Day(*req.Day)
		if !slot.ValidDay(day) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teaching day %q", *req.Day))
		}
		entry.Day = day
	}
	if req.Period != nil {
		entry.Period = *req.Period
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin placement tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.validator.Validate(ctx, tx, entry, subject, models.PlacementNormal, entry.ID); err != nil {
		s.observeRejection(err)
		return nil, err
	}
	if err := s.entries.Update(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit placement update: %w", err)
	}
	s.metrics.PlacementAccepted()

	s.invalidate(ctx, entry.SessionID, entry.CourseID)
	s.effects.Audit(actorID, models.AuditActionUpdate, &entry.ID,
		fmt.Sprintf("moved %s to %s period %d", subject.Name, entry.Day, entry.Period))
	s.effects.NotifyScope(entry.CourseID, entry.SectionID,
		fmt.Sprintf("Class moved: %s is now on %s, period %d (%s)", subject.Name, entry.Day, entry.Period, slot.Label(entry.Period)))
	return entry, nil
}

func (s *TimetableService) DeleteEntry(ctx context.Context, actorID *string, id string) error {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.entries.Delete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	s.invalidate(ctx, entry.SessionID, entry.CourseID)
	s.effects.Audit(actorID, models.AuditActionDelete, &entry.ID,
		fmt.Sprintf("removed class on %s period %d", entry.Day, entry.Period))
	s.effects.NotifyScope(entry.CourseID, entry.SectionID,
		fmt.Sprintf("Class cancelled: %s period %d (%s)", entry.Day, entry.Period, slot.Label(entry.Period)))
	return nil
}

// EraseSchedule removes every placement in the session and reports the count.
func (s *TimetableService) EraseSchedule(ctx context.Context, actorID *string, sessionID string) (*dto.EraseSummary, error) {
	entries, err := s.entries.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin erase tx: %w", err)
	}
	defer tx.Rollback()

	removed, err := s.entries.DeleteBySession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit erase: %w", err)
	}

	courses := map[string]struct{}{}
	for _, entry := range entries {
		courses[entry.CourseID] = struct{}{}
	}
	for courseID := range courses {
		s.invalidate(ctx, sessionID, courseID)
	}
	s.effects.Audit(actorID, models.AuditActionErase, nil,
		fmt.Sprintf("erased %d placements for session %s", removed, sessionID))
	return &dto.EraseSummary{Removed: removed}, nil
}

func (s *TimetableService) GetEntry(ctx context.Context, id string) (*models.TimetableEntry, error) {
	return s.entries.FindByID(ctx, id)
}

// Grid returns the weekly entries for a section or a whole course, cached.
func (s *TimetableService) Grid(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.TimetableEntry, error) {
	cached, err := s.cache.GetGrid(ctx, sessionID, courseID, sectionID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Sugar().Warnw("grid cache read failed", "error", err)
	}

	entries, err := s.entries.ListForScope(ctx, sessionID, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetGrid(ctx, sessionID, courseID, sectionID, entries); err != nil {
		s.logger.Sugar().Warnw("grid cache write failed", "error", err)
	}
	return entries, nil
}

// StaffGrid returns a staff member's weekly entries.
func (s *TimetableService) StaffGrid(ctx context.Context, sessionID, staffID string) ([]models.TimetableEntry, error) {
	return s.entries.ListByStaff(ctx, sessionID, staffID)
}

// Coverage reports scheduled-vs-quota status for every schedulable subject
// scope in the session.
func (s *TimetableService) Coverage(ctx context.Context, sessionID string) ([]models.CoverageRow, error) {
	subjects, err := s.subjects.ListSchedulable(ctx)
	if err != nil {
		return nil, err
	}

	rows := []models.CoverageRow{}
	for i := range subjects {
		subject := &subjects[i]
		offerings, err := s.subjects.ListOfferings(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		for _, offering := range offerings {
			count, err := s.entries.CountForSubjectScope(ctx, s.db, sessionID, subject.ID, offering.CourseID, offering.SectionID, "")
			if err != nil {
				return nil, err
			}
			status := "ok"
			switch {
			case count < subject.Credits:
				status = "under"
			case count > subject.Credits:
				status = "over"
			}
			rows = append(rows, models.CoverageRow{
				SubjectID:   subject.ID,
				SubjectName: subject.Name,
				CourseID:    offering.CourseID,
				SectionID:   offering.SectionID,
				Scheduled:   count,
				Credits:     subject.Credits,
				Status:      status,
			})
		}
	}
	return rows, nil
}

func (s *TimetableService) invalidate(ctx context.Context, sessionID, courseID string) {
	if err := s.cache.InvalidateCourse(ctx, sessionID, courseID); err != nil {
		s.logger.Sugar().Warnw("cache invalidation failed", "session_id", sessionID, "course_id", courseID, "error", err)
	}
}

func (s *TimetableService) observeRejection(err error) {
	var conflict *models.PlacementConflictError
	if errors.As(err, &conflict) {
		s.metrics.PlacementRejected(conflict.Reason)
	}
}
