package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, log *models.TimetableAuditLog) error {
	query := `INSERT INTO timetable_audit_logs (id, actor_id, action, entry_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		log.ID, log.ActorID, log.Action, log.EntryID, log.Details,
	).Scan(&log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, pagination *models.Pagination) ([]models.TimetableAuditLog, error) {
	pagination.Normalize()
	if err := r.db.GetContext(ctx, &pagination.TotalCount, `SELECT COUNT(*) FROM timetable_audit_logs`); err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	logs := []models.TimetableAuditLog{}
	query := `SELECT id, actor_id, action, entry_id, details, created_at
		FROM timetable_audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &logs, query, pagination.Limit(), pagination.Offset()); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
