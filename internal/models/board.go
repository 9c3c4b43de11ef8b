package models

import "time"

// Board is a collaboration workspace scoping tasks, agents, and approvals.
type Board struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Name           string     `gorm:"size:128;not null" json:"name"`
	GatewayID      *string    `gorm:"size:36;index" json:"gateway_id"`
	BoardType      string     `gorm:"size:16;default:general" json:"board_type"`
	Objective      string     `gorm:"type:text" json:"objective"`
	SuccessMetrics string     `gorm:"type:json" json:"success_metrics"`
	TargetDate     *time.Time `json:"target_date"`
	GoalConfirmed  bool       `gorm:"default:false" json:"goal_confirmed"`
	GoalSource     string     `gorm:"size:32" json:"goal_source"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Gateway holds connection settings for an outbound agent gateway. Tokens
// never leave the server.
type Gateway struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128" json:"name"`
	URL       string    `gorm:"size:256" json:"url"`
	Token     string    `gorm:"size:256" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
