package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/crewdeck/crewdeck/internal/approval"
	"github.com/crewdeck/crewdeck/internal/models"
	"github.com/crewdeck/crewdeck/internal/tasklink"
	"gorm.io/gorm"
)

// taskCountsPayload annotates one task with its approval totals.
type taskCountsPayload struct {
	TaskID                string `json:"task_id"`
	ApprovalsCount        int    `json:"approvals_count"`
	ApprovalsPendingCount int    `json:"approvals_pending_count"`
}

// approvalPoller emits one "approval" event per approval created or
// resolved at-or-after the watermark, ascending by creation time.
type approvalPoller struct {
	boardID   string
	watermark time.Time
}

// ApprovalEvents starts a background poller for a board's approval feed.
// Events arrive on the returned channel until ctx is cancelled, after
// which the channel is closed.
func ApprovalEvents(ctx context.Context, db *gorm.DB, boardID, sinceValue string) <-chan Event {
	p := &approvalPoller{boardID: boardID, watermark: SinceOrNow(sinceValue)}
	out := make(chan Event, channelBuffer)
	go run(ctx, db, p, PollInterval, out)
	return out
}

func (p *approvalPoller) poll(db *gorm.DB) ([]Event, error) {
	wm := p.watermark
	var approvals []models.Approval
	if err := db.Where("board_id = ?", p.boardID).
		Where("created_at >= ? OR resolved_at >= ?", wm, wm).
		Order("created_at ASC").
		Find(&approvals).Error; err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	if len(approvals) == 0 {
		return nil, nil
	}

	reads, err := approval.Expand(db, approvals)
	if err != nil {
		return nil, err
	}

	var pendingCount int64
	if err := db.Model(&models.Approval{}).
		Where("board_id = ? AND status = ?", p.boardID, models.ApprovalPending).
		Count(&pendingCount).Error; err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}

	taskIDSet := make(map[string]bool)
	var taskIDs []string
	for _, read := range reads {
		for _, id := range read.TaskIDs {
			if !taskIDSet[id] {
				taskIDSet[id] = true
				taskIDs = append(taskIDs, id)
			}
		}
	}
	countsByTask, err := tasklink.CountsForTasks(db, p.boardID, taskIDs)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(approvals))
	for i := range approvals {
		stamp := approvals[i].UpdatedStamp()
		p.watermark = advance(p.watermark, stamp)

		payload := map[string]any{
			"approval":                reads[i],
			"pending_approvals_count": pendingCount,
		}
		var taskCounts []taskCountsPayload
		for _, taskID := range reads[i].TaskIDs {
			if tc, ok := countsByTask[taskID]; ok {
				taskCounts = append(taskCounts, taskCountsPayload{
					TaskID:                taskID,
					ApprovalsCount:        tc.Total,
					ApprovalsPendingCount: tc.Pending,
				})
			}
		}
		if len(taskCounts) == 1 {
			payload["task_counts"] = taskCounts[0]
		} else if len(taskCounts) > 1 {
			payload["task_counts"] = taskCounts
		}
		events = append(events, Event{Name: "approval", Data: payload})
	}
	return events, nil
}
