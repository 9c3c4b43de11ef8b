package models

import "time"

// OnboardingSession tracks the lead-agent onboarding conversation for a
// board. Messages is a JSON array of {role, content, timestamp} objects;
// DraftGoal holds the JSON goal proposal extracted from the lead's final
// answer.
type OnboardingSession struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	BoardID    string    `gorm:"size:36;not null;index" json:"board_id"`
	SessionKey string    `gorm:"size:128;not null" json:"session_key"`
	Status     string    `gorm:"size:16;default:active" json:"status"`
	Messages   string    `gorm:"type:json" json:"messages"`
	DraftGoal  string    `gorm:"type:json" json:"draft_goal"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
