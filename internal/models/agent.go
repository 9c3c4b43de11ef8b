package models

import "time"

// Agent is an automated worker attached to a board.
//
// The (board_id, is_board_lead) composite index backs the resolution
// notifier's lead lookup. At most one lead per board is a convention, not
// a constraint; callers take the first match.
type Agent struct {
	ID               string  `gorm:"primaryKey;size:36" json:"id"`
	BoardID          *string `gorm:"size:36;index:idx_agents_board_lead,priority:1" json:"board_id"`
	Name             string  `gorm:"size:128;not null" json:"name"`
	Status           string  `gorm:"size:16;default:provisioning" json:"status"`
	IsBoardLead      bool    `gorm:"default:false;index:idx_agents_board_lead,priority:2" json:"is_board_lead"`
	GatewaySessionID *string `gorm:"size:128" json:"gateway_session_id"`

	// TokenLookup is an indexed, non-secret prefix of the agent's API token.
	// Authentication resolves the agent by this column and then compares a
	// single digest, never scanning the agents table.
	TokenLookup string `gorm:"size:32;uniqueIndex" json:"-"`
	TokenDigest string `gorm:"size:64" json:"-"`

	LastSeenAt *time.Time `json:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
