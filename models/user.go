package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	gorm.Model

	Email         string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash  string `gorm:"size:255;not null" json:"-"`
	Role          string `gorm:"size:16;not null;default:user" json:"role"`
	ReferralCode  string `gorm:"uniqueIndex;size:16;not null" json:"referral_code"`
	ReferredBy    *uint  `gorm:"index" json:"referred_by,omitempty"`
	Country       string `gorm:"size:2" json:"country"`
	WalletAddress string `gorm:"size:64" json:"wallet_address"`
	IsActive      bool   `gorm:"default:true" json:"is_active"`

	Balance  UserBalance    `gorm:"foreignKey:UserID" json:"-"`
	Events   []RevenueEvent `gorm:"foreignKey:UserID" json:"-"`
	Sessions []Session      `gorm:"foreignKey:UserID" json:"-"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserBalance is the materialized per-user aggregate. Total WIN and pending
// tokens are projections and are never stored.
type UserBalance struct {
	UserID              uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PendingRevenueUSD   float64   `gorm:"type:numeric(24,6);not null;default:0" json:"pending_revenue_usd"`
	TodayEarningsUSD    float64   `gorm:"type:numeric(24,6);not null;default:0" json:"today_earnings_usd"`
	TodayDate           string    `gorm:"size:10" json:"today_date"`
	TotalEarningsUSD    float64   `gorm:"type:numeric(24,6);not null;default:0" json:"total_earnings_usd"`
	ReferralEarningsUSD float64   `gorm:"type:numeric(24,6);not null;default:0" json:"referral_earnings_usd"`
	LockedWin           float64   `gorm:"type:numeric(24,6);not null;default:0" json:"locked_win"`
	AvailableWin        float64   `gorm:"type:numeric(24,6);not null;default:0" json:"available_win"`
	GamesPlayed         int64     `gorm:"not null;default:0" json:"games_played"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (b UserBalance) TotalWin() float64 {
	return b.LockedWin + b.AvailableWin
}
