package models

import "time"

// Audit action tags for scheduling decisions.
const (
	AuditActionSchedule      = "schedule"
	AuditActionUpdate        = "update"
	AuditActionDelete        = "delete"
	AuditActionErase         = "erase"
	AuditActionGenerate      = "generate"
	AuditActionUnavailable   = "unavailable"
	AuditActionClaim         = "claim"
	AuditActionExtraRequest  = "extra_request"
	AuditActionScheduleExtra = "schedule_extra"
	AuditActionApprove       = "approve"
	AuditActionReject        = "reject"
)

// TimetableAuditLog is one immutable record of a scheduling decision.
// Append-only; the engine never mutates or deletes rows.
type TimetableAuditLog struct {
	ID        string    `db:"id" json:"id"`
	ActorID   *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	EntryID   *string   `db:"entry_id" json:"entry_id,omitempty"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Normalize clamps page and page size to sane bounds.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
}

func (p *Pagination) Limit() int {
	return p.PageSize
}

func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
