package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/slot"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type extraClassStore interface {
	CreateRequest(ctx context.Context, req *models.ExtraClassRequest) error
	FindRequest(ctx context.Context, id string) (*models.ExtraClassRequest, error)
	ListRequests(ctx context.Context, sessionID string, status string) ([]models.ExtraClassRequest, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error
	CreateSchedule(ctx context.Context, s *models.ExtraClassSchedule) error
	FindSchedule(ctx context.Context, id string) (*models.ExtraClassSchedule, error)
	ListSchedulesByStaff(ctx context.Context, sessionID, staffID string) ([]models.ExtraClassSchedule, error)
	UpdateScheduleStatus(ctx context.Context, exec sqlx.ExtContext, id, status string, entryID *string) error
}

type openSlotChecker interface {
	ExistsOpenAt(ctx context.Context, exec sqlx.ExtContext, sessionID, courseID string, sectionID *string, day slot.Day, period int) (bool, error)
}

// ExtraClassService runs the out-of-band extra class workflow: staff file
// requests, administrators approve them, and approved wall-clock schedules
// inside teaching hours are materialized onto the weekly grid.
type ExtraClassService struct {
	db        txBeginner
	classes   extraClassStore
	entries   entryStore
	subjects  subjectStore
	openSlots openSlotChecker
	validator *PlacementValidator
	validate  *validator.Validate
	cache     gridCache
	effects   sideEffects
	logger    *zap.Logger
}

func NewExtraClassService(db txBeginner, classes extraClassStore, entries entryStore, subjects subjectStore, openSlots openSlotChecker, placement *PlacementValidator, validate *validator.Validate, cache gridCache, effects sideEffects, logger *zap.Logger) *ExtraClassService {
	if validate == nil {
		validate = validator.New()
	}
	return &ExtraClassService{
		db:        db,
		classes:   classes,
		entries:   entries,
		subjects:  subjects,
		openSlots: openSlots,
		validator: placement,
		validate:  validate,
		cache:     cache,
		effects:   effects,
		logger:    logger,
	}
}

func (s *ExtraClassService) CreateRequest(ctx context.Context, actorID *string, req dto.CreateExtraRequestRequest) (*models.ExtraClassRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	var preferredDay *slot.Day
	if req.PreferredDay != nil {
		day := slot.Day(*req.PreferredDay)
		if !slot.ValidDay(day) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teaching day %q", *req.PreferredDay))
		}
		preferredDay = &day
	}
	if req.PreferredPeriod != nil && !slot.ValidPeriod(*req.PreferredPeriod) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d is outside the teaching day", *req.PreferredPeriod))
	}

	request := &models.ExtraClassRequest{
		ID:              uuid.NewString(),
		StaffID:         req.StaffID,
		SubjectID:       req.SubjectID,
		CourseID:        req.CourseID,
		SessionID:       req.SessionID,
		PreferredDay:    preferredDay,
		PreferredPeriod: req.PreferredPeriod,
		Reason:          req.Reason,
		Status:          models.ExtraRequestStatusRequested,
	}
	if err := s.classes.CreateRequest(ctx, request); err != nil {
		return nil, err
	}
	s.effects.Audit(actorID, models.AuditActionExtraRequest, nil,
		fmt.Sprintf("extra class requested for subject %s", request.SubjectID))
	return request, nil
}

func (s *ExtraClassService) ListRequests(ctx context.Context, sessionID, status string) ([]models.ExtraClassRequest, error) {
	return s.classes.ListRequests(ctx, sessionID, status)
}

// DecideRequest approves or rejects a pending request. Decisions on settled
// requests are rejected as stale.
func (s *ExtraClassService) DecideRequest(ctx context.Context, actorID *string, id string, approve bool) (*models.ExtraClassRequest, error) {
	request, err := s.classes.FindRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ExtraRequestStatusRequested {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("request is already %s", request.Status))
	}

	status := models.ExtraRequestStatusRejected
	action := models.AuditActionReject
	if approve {
		status = models.ExtraRequestStatusApproved
		action = models.AuditActionApprove
	}
	if err := s.classes.UpdateRequestStatus(ctx, id, status); err != nil {
		return nil, err
	}
	request.Status = status

	s.effects.Audit(actorID, action, nil, fmt.Sprintf("extra class request %s %s", id, status))
	s.effects.NotifyStaff(request.StaffID, fmt.Sprintf("Your extra class request was %s.", status))
	return request, nil
}

func (s *ExtraClassService) CreateSchedule(ctx context.Context, actorID *string, req dto.CreateExtraScheduleRequest) (*models.ExtraClassSchedule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	minutes := req.DurationMinutes
	if minutes == 0 {
		minutes = 60
	}

	schedule := &models.ExtraClassSchedule{
		ID:              uuid.NewString(),
		StaffID:         req.StaffID,
		SubjectID:       req.SubjectID,
		CourseID:        req.CourseID,
		SessionID:       req.SessionID,
		RoomID:          req.RoomID,
		StartAt:         req.StartAt,
		DurationMinutes: minutes,
		Status:          models.ExtraScheduleStatusPending,
	}
	if err := s.classes.CreateSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	s.effects.Audit(actorID, models.AuditActionScheduleExtra, nil,
		fmt.Sprintf("extra class proposed for %s", schedule.StartAt.Format("2006-01-02 15:04")))
	return schedule, nil
}

func (s *ExtraClassService) ListSchedulesByStaff(ctx context.Context, sessionID, staffID string) ([]models.ExtraClassSchedule, error) {
	return s.classes.ListSchedulesByStaff(ctx, sessionID, staffID)
}

// ApproveSchedule approves a pending schedule. When the start time falls on
// a teaching day inside teaching hours and a room is set, the schedule is
// also materialized as a grid entry through the validator; otherwise it
// stays an approved off-grid meeting.
func (s *ExtraClassService) ApproveSchedule(ctx context.Context, actorID *string, id string) (*models.ExtraClassSchedule, error) {
	schedule, err := s.classes.FindSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Status != models.ExtraScheduleStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("schedule is already %s", schedule.Status))
	}

	day, onDay := models.DayForTime(schedule.StartAt)
	period, onGrid := models.PeriodForTime(schedule.StartAt)
	if !onDay || !onGrid || schedule.RoomID == nil {
		if err := s.classes.UpdateScheduleStatus(ctx, s.db, id, models.ExtraScheduleStatusApproved, nil); err != nil {
			return nil, err
		}
		schedule.Status = models.ExtraScheduleStatusApproved
		s.effects.Audit(actorID, models.AuditActionApprove, nil,
			fmt.Sprintf("extra class schedule %s approved off-grid", id))
		s.effects.NotifyStaff(schedule.StaffID, "Your extra class was approved.")
		return schedule, nil
	}

	subject, err := s.subjects.FindByID(ctx, schedule.SubjectID)
	if err != nil {
		return nil, err
	}
	duration := (schedule.DurationMinutes + 59) / 60
	if duration < 1 {
		duration = 1
	}
	if duration > 2 {
		duration = 2
	}

	entry := &models.TimetableEntry{
		ID:        uuid.NewString(),
		SessionID: schedule.SessionID,
		CourseID:  schedule.CourseID,
		SubjectID: schedule.SubjectID,
		StaffID:   schedule.StaffID,
		RoomID:    *schedule.RoomID,
		Day:       day,
		Period:    period,
		Duration:  duration,
		IsLab:     subject.Lab(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin extra class tx: %w", err)
	}
	defer tx.Rollback()

	// The relaxed rule set only applies when the pool actually offers this
	// slot; otherwise the class competes like any normal placement.
	mode := models.PlacementNormal
	open, err := s.openSlots.ExistsOpenAt(ctx, tx, schedule.SessionID, schedule.CourseID, nil, day, period)
	if err != nil {
		return nil, err
	}
	if open {
		mode = models.PlacementExtraFill
	}
	if err := s.validator.Validate(ctx, tx, entry, subject, mode, ""); err != nil {
		return nil, err
	}
	if err := s.entries.Create(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := s.classes.UpdateScheduleStatus(ctx, tx, id, models.ExtraScheduleStatusScheduled, &entry.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit extra class: %w", err)
	}

	schedule.Status = models.ExtraScheduleStatusScheduled
	schedule.EntryID = &entry.ID

	if err := s.cache.InvalidateCourse(ctx, entry.SessionID, entry.CourseID); err != nil {
		s.logger.Sugar().Warnw("cache invalidation failed", "course_id", entry.CourseID, "error", err)
	}
	s.effects.Audit(actorID, models.AuditActionApprove, &entry.ID,
		fmt.Sprintf("extra class schedule %s placed on %s period %d", id, entry.Day, entry.Period))
	s.effects.NotifyStaff(schedule.StaffID,
		fmt.Sprintf("Your extra class was approved and placed on %s, period %d (%s).", entry.Day, entry.Period, slot.Label(entry.Period)))
	s.effects.NotifyScope(schedule.CourseID, nil,
		fmt.Sprintf("Extra class: %s, period %d (%s)", entry.Day, entry.Period, slot.Label(entry.Period)))
	return schedule, nil
}

// RejectSchedule rejects a pending schedule; CancelSchedule withdraws an
// approved or pending one.
func (s *ExtraClassService) RejectSchedule(ctx context.Context, actorID *string, id string) (*models.ExtraClassSchedule, error) {
	return s.settleSchedule(ctx, actorID, id, models.ExtraScheduleStatusRejected,
		[]string{models.ExtraScheduleStatusPending})
}

func (s *ExtraClassService) CancelSchedule(ctx context.Context, actorID *string, id string) (*models.ExtraClassSchedule, error) {
	return s.settleSchedule(ctx, actorID, id, models.ExtraScheduleStatusCancelled,
		[]string{models.ExtraScheduleStatusPending, models.ExtraScheduleStatusApproved})
}

func (s *ExtraClassService) settleSchedule(ctx context.Context, actorID *string, id, status string, allowed []string) (*models.ExtraClassSchedule, error) {
	schedule, err := s.classes.FindSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	permitted := false
	for _, a := range allowed {
		if schedule.Status == a {
			permitted = true
			break
		}
	}
	if !permitted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("schedule is already %s", schedule.Status))
	}

	if err := s.classes.UpdateScheduleStatus(ctx, s.db, id, status, schedule.EntryID); err != nil {
		return nil, err
	}
	schedule.Status = status

	action := models.AuditActionReject
	s.effects.Audit(actorID, action, schedule.EntryID, fmt.Sprintf("extra class schedule %s %s", id, status))
	s.effects.NotifyStaff(schedule.StaffID, fmt.Sprintf("Your extra class schedule was %s.", status))
	return schedule, nil
}
