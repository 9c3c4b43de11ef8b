package models

import "time"

// Approval statuses.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Approval is a decision record gating an agent's proposed action.
//
// ResolvedAt is set exactly when Status is a terminal value. TaskID is the
// legacy single-task reference kept for rows created before multi-task
// links existed; the link table is authoritative when it has rows.
type Approval struct {
	ID           string  `gorm:"primaryKey;size:36"`
	BoardID      string  `gorm:"size:36;not null;index:idx_approvals_board_created,priority:1;index:idx_approvals_board_resolved,priority:1"`
	TaskID       *string `gorm:"size:36;index"`
	AgentID      *string `gorm:"size:36"`
	ActionType   string  `gorm:"size:64;not null"`
	Payload      string  `gorm:"type:json"`
	Confidence   float64
	RubricScores string     `gorm:"type:json"`
	Status       string     `gorm:"size:16;default:pending;index"`
	CreatedAt    time.Time  `gorm:"index:idx_approvals_board_created,priority:2"`
	ResolvedAt   *time.Time `gorm:"index:idx_approvals_board_resolved,priority:2"`
}

// Resolved reports whether the approval is in a terminal state.
func (a *Approval) Resolved() bool {
	return a.Status == ApprovalApproved || a.Status == ApprovalRejected
}

// UpdatedStamp returns the timestamp the stream watermark advances on:
// resolution time when set, creation time otherwise.
func (a *Approval) UpdatedStamp() time.Time {
	if a.ResolvedAt != nil {
		return *a.ResolvedAt
	}
	return a.CreatedAt
}

// ApprovalTaskLink associates an approval with a task. Position preserves
// the order task ids were supplied at creation.
type ApprovalTaskLink struct {
	ApprovalID string `gorm:"primaryKey;size:36"`
	TaskID     string `gorm:"primaryKey;size:36;index"`
	Position   int
}
