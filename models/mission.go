package models

import "time"

type MissionClaim struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_mission_claim,priority:1;not null" json:"user_id"`
	MissionID string    `gorm:"uniqueIndex:idx_mission_claim,priority:2;size:32;not null" json:"mission_id"`
	Period    string    `gorm:"uniqueIndex:idx_mission_claim,priority:3;size:10;not null" json:"period"`
	RewardWin float64   `gorm:"type:numeric(24,6)" json:"reward_win"`
	CreatedAt time.Time `json:"created_at"`
}
