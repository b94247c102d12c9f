package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VestingLocked   = "locked"
	VestingUnlocked = "unlocked"
	VestingClaimed  = "claimed"
)

type VestingSchedule struct {
	ID           string     `gorm:"primaryKey;size:36" json:"_id"`
	UserID       uint       `gorm:"index;not null" json:"user_id"`
	SettlementID string     `gorm:"size:36;index" json:"settlement_id"`
	WinAmount    float64    `gorm:"type:numeric(24,6);not null" json:"win_amount"`
	UnlockDate   time.Time  `gorm:"index" json:"unlock_date"`
	Status       string     `gorm:"size:16;index;not null;default:locked" json:"status"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (v *VestingSchedule) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
