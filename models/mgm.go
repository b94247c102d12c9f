package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MGMActive    = "active"
	MGMExpired   = "expired"
	MGMCancelled = "cancelled"
	MGMClaimed   = "claimed"
)

type MGMSubscription struct {
	gorm.Model

	UserID                uint       `gorm:"index;not null" json:"user_id"`
	Tier                  string     `gorm:"size:16;index;not null" json:"tier"`
	InvestmentWin         float64    `gorm:"type:numeric(24,6);not null" json:"investment_win"`
	DailyRewardWin        float64    `gorm:"type:numeric(24,6);not null" json:"daily_reward_win"`
	DurationDays          int        `json:"duration_days"`
	StartDate             time.Time  `json:"start_date"`
	EndDate               time.Time  `gorm:"index" json:"end_date"`
	AccumulatedRewardsWin float64    `gorm:"type:numeric(24,6);not null;default:0" json:"accumulated_rewards_win"`
	Status                string     `gorm:"size:16;index;not null" json:"status"`
	ForfeitedWin          float64    `gorm:"type:numeric(24,6);not null;default:0" json:"forfeited_win"`
	PrincipalRefunded     bool       `json:"principal_refunded"`
	// PrincipalHeld marks a cancelled subscription whose principal is still
	// locked, waiting for an admin to refund or forfeit it.
	PrincipalHeld         bool       `gorm:"index;not null;default:false" json:"principal_held"`
	PrincipalResolvedBy   *uint      `json:"principal_resolved_by,omitempty"`
	PrincipalResolvedAt   *time.Time `json:"principal_resolved_at,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
	ClaimedAt             *time.Time `json:"claimed_at,omitempty"`
}
