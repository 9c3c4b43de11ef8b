package models

import "time"

// ActivityEvent is an append-only audit record for a board.
type ActivityEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID   string    `gorm:"size:36;not null;index:idx_activity_board_created,priority:1" json:"board_id"`
	EventType string    `gorm:"size:64;not null" json:"event_type"`
	Message   string    `gorm:"type:text" json:"message"`
	AgentID   *string   `gorm:"size:36" json:"agent_id"`
	TaskID    *string   `gorm:"size:36" json:"task_id"`
	CreatedAt time.Time `gorm:"index:idx_activity_board_created,priority:2" json:"created_at"`
}
