package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SettlementPendingApproval = "pending_approval"
	SettlementApproved        = "approved"
	SettlementExecuted        = "executed"
)

type SkippedUser struct {
	UserID uint   `json:"user_id"`
	Reason string `json:"reason"`
}

type Settlement struct {
	ID                    string                           `gorm:"primaryKey;size:36" json:"_id"`
	CreatedAt             time.Time                        `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time                        `json:"updated_at"`
	Status                string                           `gorm:"size:24;index;not null" json:"status"`
	Trigger               string                           `gorm:"column:run_trigger;size:16" json:"trigger"`
	TotalRevenueUSD       float64                          `gorm:"type:numeric(24,6)" json:"total_revenue_usd"`
	TotalWinToBuy         float64                          `gorm:"type:numeric(24,6)" json:"total_win_to_buy"`
	UsersCount            int                              `json:"users_count"`
	WinForUsers70         float64                          `gorm:"column:win_for_users_70;type:numeric(24,6)" json:"win_for_users_70"`
	WinForLiquidity30     float64                          `gorm:"column:win_for_liquidity_30;type:numeric(24,6)" json:"win_for_liquidity_30"`
	TokenRateUSD          float64                          `gorm:"type:numeric(24,8)" json:"token_rate_usd"`
	IncludedUsers         datatypes.JSONSlice[uint]        `json:"included_users"`
	SkippedUsers          datatypes.JSONSlice[SkippedUser] `json:"skipped_users"`
	TransactionSignatures datatypes.JSONSlice[string]      `json:"transaction_signatures"`
	ApprovedBy            *uint                            `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time                       `json:"approved_at,omitempty"`
	ExecutedBy            *uint                            `json:"executed_by,omitempty"`
	ExecutedAt            *time.Time                       `json:"executed_at,omitempty"`

	Entries []SettlementEntry `gorm:"foreignKey:SettlementID" json:"entries,omitempty"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SettlementEntry is one included user of a settlement run.
type SettlementEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SettlementID string    `gorm:"size:36;index;not null" json:"settlement_id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	RevenueUSD   float64   `gorm:"type:numeric(24,6)" json:"revenue_usd"`
	WinToBuy     float64   `gorm:"type:numeric(24,6)" json:"win_to_buy"`
	WinForUser   float64   `gorm:"type:numeric(24,6)" json:"win_for_user"`
	CreatedAt    time.Time `json:"created_at"`
}
