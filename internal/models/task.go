package models

import "time"

// Task is a unit of work on a board.
//
// The composite indexes cover the list endpoints, which filter by board_id,
// optionally by status or assigned agent, and always order by created_at.
type Task struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	BoardID         string    `gorm:"size:36;not null;index:idx_tasks_board_created,priority:1;index:idx_tasks_board_status_created,priority:1;index:idx_tasks_board_agent_created,priority:1" json:"board_id"`
	Title           string    `gorm:"size:256;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	Status          string    `gorm:"size:16;default:todo;index:idx_tasks_board_status_created,priority:2" json:"status"`
	AssignedAgentID *string   `gorm:"size:36;index:idx_tasks_board_agent_created,priority:2" json:"assigned_agent_id"`
	CreatedAt       time.Time `gorm:"index:idx_tasks_board_created,priority:2;index:idx_tasks_board_status_created,priority:3;index:idx_tasks_board_agent_created,priority:3" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
