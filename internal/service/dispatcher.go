package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/pkg/jobs"
)

type notificationStore interface {
	CreateForStaff(ctx context.Context, n *models.StaffNotification) error
	CreateForStudent(ctx context.Context, n *models.StudentNotification) error
}

type studentStore interface {
	ListByScope(ctx context.Context, courseID string, sectionID *string) ([]models.Student, error)
}

type auditStore interface {
	Append(ctx context.Context, log *models.TimetableAuditLog) error
}

const (
	jobNotifyStaff = "notify_staff"
	jobNotifyScope = "notify_scope"
	jobAudit       = "audit"
)

type staffNotice struct {
	StaffID string
	Message string
}

type scopeNotice struct {
	CourseID  string
	SectionID *string
	Message   string
}

type auditRecord struct {
	ActorID *string
	Action  string
	EntryID *string
	Details string
}

// Dispatcher fans out post-commit side effects, notifications and audit
// records, on a background queue. Side effects never fail the write that
// produced them; a failed job is retried and eventually dropped with a log
// line.
type Dispatcher struct {
	queue         *jobs.Queue
	notifications notificationStore
	students      studentStore
	audits        auditStore
	logger        *zap.Logger
}

func NewDispatcher(notifications notificationStore, students studentStore, audits auditStore, cfg jobs.QueueConfig, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		notifications: notifications,
		students:      students,
		audits:        audits,
		logger:        logger,
	}
	d.queue = jobs.NewQueue("dispatch", d.handle, cfg)
	return d
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// NotifyStaff queues a message for one staff member.
func (d *Dispatcher) NotifyStaff(staffID, message string) {
	d.enqueue(jobNotifyStaff, staffNotice{StaffID: staffID, Message: message})
}

// NotifyScope queues a message for every student in a section, or the whole
// course when sectionID is nil.
func (d *Dispatcher) NotifyScope(courseID string, sectionID *string, message string) {
	d.enqueue(jobNotifyScope, scopeNotice{CourseID: courseID, SectionID: sectionID, Message: message})
}

// Audit queues an audit record for a timetable mutation.
func (d *Dispatcher) Audit(actorID *string, action string, entryID *string, details string) {
	d.enqueue(jobAudit, auditRecord{ActorID: actorID, Action: action, EntryID: entryID, Details: details})
}

func (d *Dispatcher) enqueue(jobType string, payload interface{}) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		d.logger.Sugar().Errorw("failed to enqueue side effect", "type", jobType, "error", err)
	}
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobNotifyStaff:
		notice, ok := job.Payload.(staffNotice)
		if !ok {
			return fmt.Errorf("bad payload for %s", job.Type)
		}
		return d.notifications.CreateForStaff(ctx, &models.StaffNotification{
			ID:      uuid.NewString(),
			StaffID: notice.StaffID,
			Message: notice.Message,
		})
	case jobNotifyScope:
		notice, ok := job.Payload.(scopeNotice)
		if !ok {
			return fmt.Errorf("bad payload for %s", job.Type)
		}
		students, err := d.students.ListByScope(ctx, notice.CourseID, notice.SectionID)
		if err != nil {
			return err
		}
		for _, student := range students {
			err := d.notifications.CreateForStudent(ctx, &models.StudentNotification{
				ID:        uuid.NewString(),
				StudentID: student.ID,
				Message:   notice.Message,
			})
			if err != nil {
				return err
			}
		}
		return nil
	case jobAudit:
		record, ok := job.Payload.(auditRecord)
		if !ok {
			return fmt.Errorf("bad payload for %s", job.Type)
		}
		return d.audits.Append(ctx, &models.TimetableAuditLog{
			ID:      uuid.NewString(),
			ActorID: record.ActorID,
			Action:  record.Action,
			EntryID: record.EntryID,
			Details: record.Details,
		})
	default:
		return fmt.Errorf("unknown job type %s", job.Type)
	}
}
