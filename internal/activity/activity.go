// Package activity provides the append-only audit trail for board events.
package activity

import (
	"fmt"
	"time"

	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/gorm"
)

// Event types recorded by the approval resolution notifier.
const (
	EventLeadNotified     = "approval.lead_notified"
	EventLeadNotifyFailed = "approval.lead_notify_failed"
)

// RecordOpts holds optional parameters for recording an event.
type RecordOpts struct {
	AgentID *string
	TaskID  *string
}

// Record appends an audit event for a board.
func Record(db *gorm.DB, boardID, eventType, message string, opts RecordOpts) (*models.ActivityEvent, error) {
	if boardID == "" {
		return nil, fmt.Errorf("activity: boardID is required")
	}
	if eventType == "" {
		return nil, fmt.Errorf("activity: eventType is required")
	}

	event := models.ActivityEvent{
		BoardID:   boardID,
		EventType: eventType,
		Message:   message,
		AgentID:   opts.AgentID,
		TaskID:    opts.TaskID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("activity: record %s: %w", eventType, err)
	}
	return &event, nil
}

// List returns a board's audit events newest first.
func List(db *gorm.DB, boardID string, limit, offset int) ([]models.ActivityEvent, error) {
	if boardID == "" {
		return nil, fmt.Errorf("activity: boardID is required")
	}
	if limit <= 0 {
		limit = 50
	}
	var events []models.ActivityEvent
	if err := db.Where("board_id = ?", boardID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("activity: list %s: %w", boardID, err)
	}
	return events, nil
}
