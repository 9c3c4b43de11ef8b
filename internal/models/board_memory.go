package models

import "time"

// BoardMemory is a shared note agents leave on a board.
type BoardMemory struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BoardID   string    `gorm:"size:36;not null;index:idx_memory_board_created,priority:1" json:"board_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Tags      string    `gorm:"type:json" json:"tags"`
	Source    string    `gorm:"size:64" json:"source"`
	CreatedAt time.Time `gorm:"index:idx_memory_board_created,priority:2" json:"created_at"`
}
