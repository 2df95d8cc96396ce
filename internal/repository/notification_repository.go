package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
)

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CreateForStaff(ctx context.Context, n *models.StaffNotification) error {
	query := `INSERT INTO staff_notifications (id, staff_id, message, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at`

	if err := r.db.QueryRowxContext(ctx, query, n.ID, n.StaffID, n.Message).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("insert staff notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) CreateForStudent(ctx context.Context, n *models.StudentNotification) error {
	query := `INSERT INTO student_notifications (id, student_id, message, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at`

	if err := r.db.QueryRowxContext(ctx, query, n.ID, n.StudentID, n.Message).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("insert student notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListForStaff(ctx context.Context, staffID string) ([]models.StaffNotification, error) {
	ns := []models.StaffNotification{}
	query := `SELECT id, staff_id, message, created_at
		FROM staff_notifications
		WHERE staff_id = $1
		ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &ns, query, staffID); err != nil {
		return nil, fmt.Errorf("list staff notifications: %w", err)
	}
	return ns, nil
}

func (r *NotificationRepository) ListForStudent(ctx context.Context, studentID string) ([]models.StudentNotification, error) {
	ns := []models.StudentNotification{}
	query := `SELECT id, student_id, message, created_at
		FROM student_notifications
		WHERE student_id = $1
		ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &ns, query, studentID); err != nil {
		return nil, fmt.Errorf("list student notifications: %w", err)
	}
	return ns, nil
}
