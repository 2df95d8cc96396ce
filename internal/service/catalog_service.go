package service

import (
	"context"

	"github.com/campuskit/timetable-api/internal/models"
)

type sessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]models.Session, error)
}

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	FindSection(ctx context.Context, id string) (*models.Section, error)
	ListSections(ctx context.Context, courseID string) ([]models.Section, error)
}

type auditReader interface {
	List(ctx context.Context, pagination *models.Pagination) ([]models.TimetableAuditLog, error)
}

type notificationReader interface {
	ListForStaff(ctx context.Context, staffID string) ([]models.StaffNotification, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.StudentNotification, error)
}

// CatalogService serves the read-only reference data the scheduling
// endpoints hang off of, plus the audit and notification feeds.
type CatalogService struct {
	sessions      sessionStore
	courses       courseStore
	subjects      subjectStore
	staff         staffStore
	rooms         catalogRoomStore
	audits        auditReader
	notifications notificationReader
}

func NewCatalogService(sessions sessionStore, courses courseStore, subjects subjectStore, staff staffStore, rooms catalogRoomStore, audits auditReader, notifications notificationReader) *CatalogService {
	return &CatalogService{
		sessions:      sessions,
		courses:       courses,
		subjects:      subjects,
		staff:         staff,
		rooms:         rooms,
		audits:        audits,
		notifications: notifications,
	}
}

func (s *CatalogService) ListSessions(ctx context.Context) ([]models.Session, error) {
	return s.sessions.List(ctx)
}

func (s *CatalogService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.sessions.FindByID(ctx, id)
}

func (s *CatalogService) ListCourses(ctx context.Context) ([]models.Course, error) {
	return s.courses.List(ctx)
}

func (s *CatalogService) ListSections(ctx context.Context, courseID string) ([]models.Section, error) {
	return s.courses.ListSections(ctx, courseID)
}

func (s *CatalogService) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	return s.subjects.FindByID(ctx, id)
}

func (s *CatalogService) ListSchedulableSubjects(ctx context.Context) ([]models.Subject, error) {
	return s.subjects.ListSchedulable(ctx)
}

func (s *CatalogService) ListStaff(ctx context.Context) ([]models.Staff, error) {
	return s.staff.List(ctx)
}

func (s *CatalogService) ListRooms(ctx context.Context) ([]models.Room, error) {
	return s.rooms.List(ctx)
}

func (s *CatalogService) ListAuditLogs(ctx context.Context, pagination *models.Pagination) ([]models.TimetableAuditLog, error) {
	return s.audits.List(ctx, pagination)
}

func (s *CatalogService) ListStaffNotifications(ctx context.Context, staffID string) ([]models.StaffNotification, error) {
	return s.notifications.ListForStaff(ctx, staffID)
}

func (s *CatalogService) ListStudentNotifications(ctx context.Context, studentID string) ([]models.StudentNotification, error) {
	return s.notifications.ListForStudent(ctx, studentID)
}
