// Package tasklink maintains the many-to-many association between approvals
// and tasks and enforces the one-pending-approval-per-task rule.
package tasklink

import (
	"fmt"
	"sort"

	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Normalize derives the effective task-id list for an approval from the
// legacy single-task field, the explicit list, and ids embedded in the
// payload, in that order. Duplicates keep their first-seen position.
func Normalize(taskID *string, taskIDs []string, payload map[string]any) []string {
	ordered := make([]string, 0, len(taskIDs)+1)
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ordered = append(ordered, id)
	}

	if taskID != nil {
		add(*taskID)
	}
	for _, id := range taskIDs {
		add(id)
	}
	if payload != nil {
		if v, ok := payload["task_id"].(string); ok {
			add(v)
		}
		switch vs := payload["task_ids"].(type) {
		case []string:
			for _, v := range vs {
				add(v)
			}
		case []any:
			for _, raw := range vs {
				if v, ok := raw.(string); ok {
					add(v)
				}
			}
		}
	}
	return ordered
}

// LockForUpdate acquires row locks on the given task ids within the
// caller's transaction, serializing concurrent conflict checks over the
// same tasks. Ids are locked in sorted order so two writers touching
// overlapping task sets cannot deadlock. No-op on empty input.
func LockForUpdate(tx *gorm.DB, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	// SQLite serializes writers with a database-level lock; FOR UPDATE is
	// not part of its grammar.
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	ids := append([]string(nil), taskIDs...)
	sort.Strings(ids)
	var rows []models.Task
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return fmt.Errorf("tasklink: lock tasks: %w", err)
	}
	return nil
}

// FindConflicts returns, for each candidate task id, the id of an existing
// pending approval already linked to that task on the board. An empty map
// means no conflict. excludeApprovalID skips one approval, used when
// re-validating an approval being reopened to pending.
func FindConflicts(tx *gorm.DB, boardID string, taskIDs []string, excludeApprovalID string) (map[string]string, error) {
	conflicts := make(map[string]string)
	if len(taskIDs) == 0 {
		return conflicts, nil
	}

	type linkRow struct {
		TaskID     string
		ApprovalID string
	}
	var linked []linkRow
	q := tx.Table("approval_task_links").
		Select("approval_task_links.task_id AS task_id, approval_task_links.approval_id AS approval_id").
		Joins("JOIN approvals ON approvals.id = approval_task_links.approval_id").
		Where("approvals.board_id = ? AND approvals.status = ?", boardID, models.ApprovalPending).
		Where("approval_task_links.task_id IN ?", taskIDs)
	if excludeApprovalID != "" {
		q = q.Where("approval_task_links.approval_id != ?", excludeApprovalID)
	}
	if err := q.Find(&linked).Error; err != nil {
		return nil, fmt.Errorf("tasklink: query linked conflicts: %w", err)
	}
	for _, row := range linked {
		if _, ok := conflicts[row.TaskID]; !ok {
			conflicts[row.TaskID] = row.ApprovalID
		}
	}

	// Rows created before the link table existed carry only the legacy
	// task_id column.
	var legacy []models.Approval
	lq := tx.Where("board_id = ? AND status = ? AND task_id IN ?",
		boardID, models.ApprovalPending, taskIDs)
	if excludeApprovalID != "" {
		lq = lq.Where("id != ?", excludeApprovalID)
	}
	if err := lq.Find(&legacy).Error; err != nil {
		return nil, fmt.Errorf("tasklink: query legacy conflicts: %w", err)
	}
	for _, a := range legacy {
		if a.TaskID == nil {
			continue
		}
		if _, ok := conflicts[*a.TaskID]; !ok {
			conflicts[*a.TaskID] = a.ID
		}
	}
	return conflicts, nil
}

// ReplaceLinks sets the full link set for an approval, delete-then-insert.
// Calling it twice with the same task ids leaves the links unchanged.
func ReplaceLinks(tx *gorm.DB, approvalID string, taskIDs []string) error {
	if err := tx.Where("approval_id = ?", approvalID).
		Delete(&models.ApprovalTaskLink{}).Error; err != nil {
		return fmt.Errorf("tasklink: clear links for %s: %w", approvalID, err)
	}
	if len(taskIDs) == 0 {
		return nil
	}
	links := make([]models.ApprovalTaskLink, len(taskIDs))
	for i, taskID := range taskIDs {
		links[i] = models.ApprovalTaskLink{
			ApprovalID: approvalID,
			TaskID:     taskID,
			Position:   i,
		}
	}
	if err := tx.Create(&links).Error; err != nil {
		return fmt.Errorf("tasklink: insert links for %s: %w", approvalID, err)
	}
	return nil
}

// LoadTaskIDs batch-loads linked task ids for the given approvals, in the
// order the links were created. Approvals with no link rows are absent
// from the result; callers fall back to the legacy task_id field.
func LoadTaskIDs(db *gorm.DB, approvalIDs []string) (map[string][]string, error) {
	mapping := make(map[string][]string)
	if len(approvalIDs) == 0 {
		return mapping, nil
	}
	var links []models.ApprovalTaskLink
	if err := db.Where("approval_id IN ?", approvalIDs).
		Order("approval_id ASC, position ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("tasklink: load task ids: %w", err)
	}
	for _, link := range links {
		mapping[link.ApprovalID] = append(mapping[link.ApprovalID], link.TaskID)
	}
	return mapping, nil
}

// TaskCounts holds per-task approval totals for stream payloads.
type TaskCounts struct {
	Total   int
	Pending int
}

// CountsForTasks returns approval counts for each of the given task ids on
// a board, counting an approval once per task whether it is associated via
// the link table, the legacy column, or both.
func CountsForTasks(db *gorm.DB, boardID string, taskIDs []string) (map[string]TaskCounts, error) {
	counts := make(map[string]TaskCounts)
	if len(taskIDs) == 0 {
		return counts, nil
	}

	// task id -> approval id -> status
	byTask := make(map[string]map[string]string)
	record := func(taskID, approvalID, status string) {
		m, ok := byTask[taskID]
		if !ok {
			m = make(map[string]string)
			byTask[taskID] = m
		}
		m[approvalID] = status
	}

	type linkRow struct {
		TaskID     string
		ApprovalID string
		Status     string
	}
	var linked []linkRow
	if err := db.Table("approval_task_links").
		Select("approval_task_links.task_id AS task_id, approval_task_links.approval_id AS approval_id, approvals.status AS status").
		Joins("JOIN approvals ON approvals.id = approval_task_links.approval_id").
		Where("approvals.board_id = ?", boardID).
		Where("approval_task_links.task_id IN ?", taskIDs).
		Find(&linked).Error; err != nil {
		return nil, fmt.Errorf("tasklink: count linked approvals: %w", err)
	}
	for _, row := range linked {
		record(row.TaskID, row.ApprovalID, row.Status)
	}

	var legacy []models.Approval
	if err := db.Where("board_id = ? AND task_id IN ?", boardID, taskIDs).
		Find(&legacy).Error; err != nil {
		return nil, fmt.Errorf("tasklink: count legacy approvals: %w", err)
	}
	for _, a := range legacy {
		if a.TaskID != nil {
			record(*a.TaskID, a.ID, a.Status)
		}
	}

	for taskID, approvals := range byTask {
		var tc TaskCounts
		for _, status := range approvals {
			tc.Total++
			if status == models.ApprovalPending {
				tc.Pending++
			}
		}
		counts[taskID] = tc
	}
	return counts, nil
}
