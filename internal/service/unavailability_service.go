package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type unavailabilityStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, u *models.StaffUnavailability) error
	FindByID(ctx context.Context, id string) (*models.StaffUnavailability, error)
	ListByStaff(ctx context.Context, sessionID, staffID string) ([]models.StaffUnavailability, error)
	Delete(ctx context.Context, id string) error
}

type extraSlotPublisher interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, s *models.ExtraClassAvailability) (bool, error)
}

type staffDayEntries interface {
	ListByStaffDay(ctx context.Context, exec sqlx.ExtContext, sessionID, staffID string, day slot.Day) ([]models.TimetableEntry, error)
}

type courseStaffStore interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Staff, error)
}

// UnavailabilityService records staff absence windows and republishes the
// slots those absences free up. The covered entries are deliberately left in
// place: the grid keeps showing the planned class while the freed slot is
// offered to other teachers through the extra class pool.
type UnavailabilityService struct {
	db      txBeginner
	windows unavailabilityStore
	entries staffDayEntries
	slots   extraSlotPublisher
	staff   courseStaffStore
	cache   gridCache
	effects sideEffects
	logger  *zap.Logger
}

func NewUnavailabilityService(db txBeginner, windows unavailabilityStore, entries staffDayEntries, slots extraSlotPublisher, staff courseStaffStore, cache gridCache, effects sideEffects, logger *zap.Logger) *UnavailabilityService {
	return &UnavailabilityService{
		db:      db,
		windows: windows,
		entries: entries,
		slots:   slots,
		staff:   staff,
		cache:   cache,
		effects: effects,
		logger:  logger,
	}
}

// Record stores the window and republishes every slot of the staff member's
// classes it covers, all in one transaction. Republishing the same slot
// twice is a no-op, so overlapping declarations do not grow the pool.
func (s *UnavailabilityService) Record(ctx context.Context, actorID *string, req dto.RecordUnavailabilityRequest) (*dto.UnavailabilityResponse, error) {
	day := slot.Day(req.Day)
	if !slot.ValidDay(day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teaching day %q", req.Day))
	}
	duration := req.Duration
	if duration == 0 {
		duration = 1
	}
	if !slot.Fits(req.Period, duration) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("window of %d periods from period %d does not fit the teaching day", duration, req.Period))
	}
	recurring := true
	if req.RecurringWeekly != nil {
		recurring = *req.RecurringWeekly
	}

	window := &models.StaffUnavailability{
		ID:              uuid.NewString(),
		StaffID:         req.StaffID,
		SessionID:       req.SessionID,
		Day:             day,
		Period:          req.Period,
		Duration:        duration,
		Reason:          req.Reason,
		RecurringWeekly: recurring,
		RepeatUntil:     req.RepeatUntil,
		ExceptionDate:   req.ExceptionDate,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unavailability tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.windows.Create(ctx, tx, window); err != nil {
		return nil, err
	}

	published, courses, err := s.republish(ctx, tx, window)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unavailability: %w", err)
	}

	for courseID := range courses {
		if err := s.cache.InvalidateCourse(ctx, window.SessionID, courseID); err != nil {
			s.logger.Sugar().Warnw("cache invalidation failed", "course_id", courseID, "error", err)
		}
		s.notifyCourseStaff(ctx, courseID, window)
	}
	s.effects.Audit(actorID, models.AuditActionUnavailable, nil,
		fmt.Sprintf("staff %s unavailable on %s period %d (+%d), %d slots republished",
			window.StaffID, window.Day, window.Period, window.Duration-1, published))
	s.effects.NotifyStaff(window.StaffID,
		fmt.Sprintf("Your unavailability on %s period %d was recorded; %d of your slots were opened for extra classes.",
			window.Day, window.Period, published))

	return &dto.UnavailabilityResponse{Unavailability: window, PublishedSlots: published}, nil
}

// republish walks the staff member's classes on the window's day and opens
// an extra slot for every covered one. The covered entry itself stays: it is
// stale until the slot is claimed, which the grid readers tolerate.
func (s *UnavailabilityService) republish(ctx context.Context, tx *sqlx.Tx, window *models.StaffUnavailability) (int, map[string]struct{}, error) {
	entries, err := s.entries.ListByStaffDay(ctx, tx, window.SessionID, window.StaffID, window.Day)
	if err != nil {
		return 0, nil, err
	}

	published := 0
	courses := map[string]struct{}{}
	for i := range entries {
		entry := &entries[i]
		if !slot.Overlaps(entry.Period, entry.Duration, window.Period, window.Duration) {
			continue
		}
		created, err := s.slots.Upsert(ctx, tx, &models.ExtraClassAvailability{
			ID:          uuid.NewString(),
			SessionID:   entry.SessionID,
			CourseID:    entry.CourseID,
			SectionID:   entry.SectionID,
			RoomID:      entry.RoomID,
			Day:         entry.Day,
			Period:      entry.Period,
			Duration:    entry.Duration,
			CreatedFrom: &entry.ID,
		})
		if err != nil {
			return 0, nil, err
		}
		if created {
			published++
			courses[entry.CourseID] = struct{}{}
		}
		s.logger.Sugar().Warnw("entry covered by unavailability left in place",
			"entry_id", entry.ID, "day", entry.Day, "period", entry.Period, "staff_id", window.StaffID)
	}
	return published, courses, nil
}

// notifyCourseStaff tells the other teachers of a course that claimable
// slots just opened. Post-commit and best effort.
func (s *UnavailabilityService) notifyCourseStaff(ctx context.Context, courseID string, window *models.StaffUnavailability) {
	members, err := s.staff.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Sugar().Warnw("course staff lookup failed", "course_id", courseID, "error", err)
		return
	}
	for _, member := range members {
		if member.ID == window.StaffID {
			continue
		}
		s.effects.NotifyStaff(member.ID,
			fmt.Sprintf("Extra class slots opened in your course on %s from period %d; claim one to cover the absence.",
				window.Day, window.Period))
	}
}

func (s *UnavailabilityService) ListByStaff(ctx context.Context, sessionID, staffID string) ([]models.StaffUnavailability, error) {
	return s.windows.ListByStaff(ctx, sessionID, staffID)
}

func (s *UnavailabilityService) Delete(ctx context.Context, id string) error {
	if _, err := s.windows.FindByID(ctx, id); err != nil {
		return err
	}
	return s.windows.Delete(ctx, id)
}
