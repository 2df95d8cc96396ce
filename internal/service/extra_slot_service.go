package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type extraSlotStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExtraClassAvailability, error)
	ListOpenByCourse(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.ExtraClassAvailability, error)
	MarkClaimed(ctx context.Context, exec sqlx.ExtContext, slotID, entryID, subjectID string) error
}

type slotCache interface {
	GetOpenSlots(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.ExtraClassAvailability, error)
	SetOpenSlots(ctx context.Context, sessionID, courseID string, sectionID *string, slots []models.ExtraClassAvailability) error
	InvalidateCourse(ctx context.Context, sessionID, courseID string) error
}

// ExtraSlotService lists and claims the freed slots published by staff
// unavailability. A claim validates a replacement class through the full
// validator (in extra-fill mode) and stamps the slot in the same
// transaction, so each slot converts into at most one class.
type ExtraSlotService struct {
	db        txBeginner
	slots     extraSlotStore
	entries   entryStore
	subjects  subjectStore
	validator *PlacementValidator
	cache     slotCache
	effects   sideEffects
	metrics   *Metrics
	logger    *zap.Logger
}

func NewExtraSlotService(db txBeginner, slots extraSlotStore, entries entryStore, subjects subjectStore, validator *PlacementValidator, cache slotCache, effects sideEffects, metrics *Metrics, logger *zap.Logger) *ExtraSlotService {
	return &ExtraSlotService{
		db:        db,
		slots:     slots,
		entries:   entries,
		subjects:  subjects,
		validator: validator,
		cache:     cache,
		effects:   effects,
		metrics:   metrics,
		logger:    logger,
	}
}

// ListOpen returns the unclaimed slots for a course, cached.
func (s *ExtraSlotService) ListOpen(ctx context.Context, sessionID, courseID string, sectionID *string) ([]models.ExtraClassAvailability, error) {
	cached, err := s.cache.GetOpenSlots(ctx, sessionID, courseID, sectionID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Sugar().Warnw("extra slot cache read failed", "error", err)
	}

	open, err := s.slots.ListOpenByCourse(ctx, sessionID, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetOpenSlots(ctx, sessionID, courseID, sectionID, open); err != nil {
		s.logger.Sugar().Warnw("extra slot cache write failed", "error", err)
	}
	return open, nil
}

// Claim converts an open slot into a class where the claiming staff member
// teaches the given subject, in the slot's room or an explicitly chosen one.
// The slot's originating entry is excluded from the conflict checks: its
// teacher is absent and its audience is exactly the audience being
// rescheduled, so only third parties can block the claim. Exactly one
// concurrent claimant wins; the rest get a slot-claimed conflict.
func (s *ExtraSlotService) Claim(ctx context.Context, actorID *string, slotID, staffID, subjectID string, roomID *string) (*models.TimetableEntry, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	open, err := s.slots.FindByID(ctx, tx, slotID)
	if err != nil {
		return nil, err
	}
	if !open.Open() {
		s.metrics.ClaimLost()
		return nil, models.NewConflict(models.ReasonSlotClaimed, "extra slot has already been claimed")
	}

	room := open.RoomID
	if roomID != nil {
		room = *roomID
	}
	entry := &models.TimetableEntry{
		ID:        uuid.NewString(),
		SessionID: open.SessionID,
		CourseID:  open.CourseID,
		SectionID: open.SectionID,
		SubjectID: subject.ID,
		StaffID:   staffID,
		RoomID:    room,
		Day:       open.Day,
		Period:    open.Period,
		Duration:  open.Duration,
		IsLab:     subject.Lab(),
	}
	// A lab cannot squeeze into a single-period slot.
	if subject.Lab() && open.Duration != 2 {
		return nil, models.NewConflict(models.ReasonLabDuration,
			"lab subject %s requires a two-period block", subject.Name)
	}

	excludeID := ""
	if open.CreatedFrom != nil {
		excludeID = *open.CreatedFrom
	}
	if err := s.validator.Validate(ctx, tx, entry, subject, models.PlacementExtraFill, excludeID); err != nil {
		s.observeRejection(err)
		return nil, err
	}
	if err := s.entries.Create(ctx, tx, entry); err != nil {
		s.observeRejection(err)
		return nil, err
	}
	if err := s.slots.MarkClaimed(ctx, tx, open.ID, entry.ID, subject.ID); err != nil {
		if conflict := asConflict(err); conflict != nil {
			s.metrics.ClaimLost()
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	s.metrics.ClaimWon()

	if err := s.cache.InvalidateCourse(ctx, entry.SessionID, entry.CourseID); err != nil {
		s.logger.Sugar().Warnw("cache invalidation failed", "course_id", entry.CourseID, "error", err)
	}
	s.effects.Audit(actorID, models.AuditActionClaim, &entry.ID,
		fmt.Sprintf("claimed extra slot %s for %s on %s period %d", open.ID, subject.Name, entry.Day, entry.Period))
	s.effects.NotifyScope(entry.CourseID, entry.SectionID,
		fmt.Sprintf("Extra class: %s on %s, period %d (%s)", subject.Name, entry.Day, entry.Period, slot.Label(entry.Period)))
	s.effects.NotifyStaff(entry.StaffID,
		fmt.Sprintf("You claimed an extra class slot on %s, period %d (%s).", entry.Day, entry.Period, slot.Label(entry.Period)))
	return entry, nil
}

func (s *ExtraSlotService) observeRejection(err error) {
	if conflict := asConflict(err); conflict != nil {
		s.metrics.PlacementRejected(conflict.Reason)
	}
}

func asConflict(err error) *models.PlacementConflictError {
	var conflict *models.PlacementConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	return nil
}
