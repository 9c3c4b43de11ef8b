// Package approval implements the approval lifecycle: creation, status
// transitions, and the one-pending-approval-per-task conflict protocol.
package approval

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tasklink"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Read is the externally visible projection of an approval. TaskID is the
// first entry of TaskIDs, or nil when the approval references no tasks.
type Read struct {
	ID           string         `json:"id"`
	BoardID      string         `json:"board_id"`
	TaskID       *string        `json:"task_id"`
	TaskIDs      []string       `json:"task_ids"`
	AgentID      *string        `json:"agent_id"`
	ActionType   string         `json:"action_type"`
	Payload      map[string]any `json:"payload"`
	Confidence   float64        `json:"confidence"`
	RubricScores map[string]any `json:"rubric_scores"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	ResolvedAt   *time.Time     `json:"resolved_at"`
}

// CreateInput holds the fields accepted when creating an approval.
type CreateInput struct {
	AgentID      *string
	ActionType   string
	Payload      map[string]any
	Confidence   float64
	RubricScores map[string]any
	Status       string
	TaskID       *string
	TaskIDs      []string
}

// UpdateInput holds the fields accepted when updating an approval. Nil
// pointers leave the stored value untouched.
type UpdateInput struct {
	Status       *string
	Confidence   *float64
	Payload      map[string]any
	RubricScores map[string]any
}

func validStatus(s string) bool {
	switch s {
	case models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
		return true
	}
	return false
}

// ensureNoConflicts runs the conflict protocol inside tx: lock the candidate
// tasks, then check every one of them against existing pending approvals.
// Any collision rejects the whole operation.
func ensureNoConflicts(tx *gorm.DB, boardID string, taskIDs []string, excludeApprovalID string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	if err := tasklink.LockForUpdate(tx, taskIDs); err != nil {
		return err
	}
	conflicts, err := tasklink.FindConflicts(tx, boardID, taskIDs, excludeApprovalID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return newConflictError(conflicts)
	}
	return nil
}

// Create persists a new approval and its task links atomically. Pending
// approvals run the conflict protocol over the normalized task set first.
func Create(db *gorm.DB, boardID string, in CreateInput) (*Read, error) {
	status := in.Status
	if status == "" {
		status = models.ApprovalPending
	}
	if !validStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: "must be pending, approved, or rejected"}
	}
	if in.ActionType == "" {
		return nil, &ValidationError{Field: "action_type", Reason: "is required"}
	}

	taskIDs := tasklink.Normalize(in.TaskID, in.TaskIDs, in.Payload)
	var primary *string
	if len(taskIDs) > 0 {
		primary = &taskIDs[0]
	}

	now := time.Now().UTC()
	a := models.Approval{
		ID:           uuid.NewString(),
		BoardID:      boardID,
		TaskID:       primary,
		AgentID:      in.AgentID,
		ActionType:   in.ActionType,
		Payload:      marshalJSON(in.Payload),
		Confidence:   in.Confidence,
		RubricScores: marshalJSON(in.RubricScores),
		Status:       status,
		CreatedAt:    now,
	}
	if status != models.ApprovalPending {
		a.ResolvedAt = &now
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if status == models.ApprovalPending {
			if err := ensureNoConflicts(tx, boardID, taskIDs, ""); err != nil {
				return err
			}
		}
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		return tasklink.ReplaceLinks(tx, a.ID, taskIDs)
	})
	if err != nil {
		return nil, err
	}
	return toRead(&a, taskIDs), nil
}

// Update applies a partial update to an approval. The returned bool is true
// when the update moved the approval into a terminal status it was not in
// before, which is the trigger for lead notification.
func Update(db *gorm.DB, boardID, approvalID string, in UpdateInput) (*Read, bool, error) {
	if in.Status != nil && !validStatus(*in.Status) {
		return nil, false, &ValidationError{Field: "status", Reason: "must be pending, approved, or rejected"}
	}

	var a models.Approval
	var prior string
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, "id = ?", approvalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if a.BoardID != boardID {
			return ErrNotFound
		}
		prior = a.Status

		if in.Status != nil {
			target := *in.Status
			if target == models.ApprovalPending && prior != models.ApprovalPending {
				// Reopening re-enters the pending pool, so the approval's
				// tasks must be conflict-free again, excluding itself.
				taskIDs, err := linkedTaskIDs(tx, &a)
				if err != nil {
					return err
				}
				if err := ensureNoConflicts(tx, boardID, taskIDs, a.ID); err != nil {
					return err
				}
			}
			a.Status = target
			if target != prior && target != models.ApprovalPending {
				now := time.Now().UTC()
				a.ResolvedAt = &now
			}
		}
		if in.Confidence != nil {
			a.Confidence = *in.Confidence
		}
		if in.Payload != nil {
			a.Payload = marshalJSON(in.Payload)
		}
		if in.RubricScores != nil {
			a.RubricScores = marshalJSON(in.RubricScores)
		}
		return tx.Save(&a).Error
	})
	if err != nil {
		return nil, false, err
	}

	taskIDs, err := linkedTaskIDs(db, &a)
	if err != nil {
		return nil, false, err
	}
	resolvedNow := a.Resolved() && a.Status != prior
	return toRead(&a, taskIDs), resolvedNow, nil
}

// List returns a board's approvals newest-created first, optionally
// filtered by status, expanded to read projections.
func List(db *gorm.DB, boardID, statusFilter string, limit, offset int) ([]Read, error) {
	if limit <= 0 {
		limit = 50
	}
	q := db.Where("board_id = ?", boardID)
	if statusFilter != "" {
		if !validStatus(statusFilter) {
			return nil, &ValidationError{Field: "status", Reason: "must be pending, approved, or rejected"}
		}
		q = q.Where("status = ?", statusFilter)
	}
	var approvals []models.Approval
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&approvals).Error; err != nil {
		return nil, err
	}
	return Expand(db, approvals)
}

// Expand converts approval rows into read projections, batch-resolving
// task ids through the link table with the legacy column as fallback.
func Expand(db *gorm.DB, approvals []models.Approval) ([]Read, error) {
	ids := make([]string, len(approvals))
	for i := range approvals {
		ids[i] = approvals[i].ID
	}
	mapping, err := tasklink.LoadTaskIDs(db, ids)
	if err != nil {
		return nil, err
	}
	reads := make([]Read, len(approvals))
	for i := range approvals {
		a := &approvals[i]
		taskIDs := mapping[a.ID]
		if len(taskIDs) == 0 && a.TaskID != nil {
			taskIDs = []string{*a.TaskID}
		}
		reads[i] = *toRead(a, taskIDs)
	}
	return reads, nil
}

// linkedTaskIDs resolves an approval's task set: linked rows first, the
// legacy single-task column as fallback.
func linkedTaskIDs(db *gorm.DB, a *models.Approval) ([]string, error) {
	mapping, err := tasklink.LoadTaskIDs(db, []string{a.ID})
	if err != nil {
		return nil, err
	}
	taskIDs := mapping[a.ID]
	if len(taskIDs) == 0 && a.TaskID != nil {
		taskIDs = []string{*a.TaskID}
	}
	return taskIDs, nil
}

func toRead(a *models.Approval, taskIDs []string) *Read {
	if taskIDs == nil {
		taskIDs = []string{}
	}
	var primary *string
	if len(taskIDs) > 0 {
		primary = &taskIDs[0]
	}
	return &Read{
		ID:           a.ID,
		BoardID:      a.BoardID,
		TaskID:       primary,
		TaskIDs:      taskIDs,
		AgentID:      a.AgentID,
		ActionType:   a.ActionType,
		Payload:      unmarshalJSON(a.Payload),
		Confidence:   a.Confidence,
		RubricScores: unmarshalJSON(a.RubricScores),
		Status:       a.Status,
		CreatedAt:    a.CreatedAt,
		ResolvedAt:   a.ResolvedAt,
	}
}

// marshalJSON marshals a map to a JSON string, empty object for nil.
func marshalJSON(v map[string]any) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// unmarshalJSON parses a stored JSON column, nil on empty or malformed.
func unmarshalJSON(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
