package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PayoutPending  = "pending"
	PayoutApproved = "approved"
	PayoutRejected = "rejected"
)

type PayoutRequest struct {
	ID            string     `gorm:"primaryKey;size:36" json:"_id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	AmountUSD     float64    `gorm:"type:numeric(24,6);not null" json:"amount_usd"`
	WinAmount     float64    `gorm:"type:numeric(24,6);not null" json:"win_amount"`
	WalletAddress string     `gorm:"size:64" json:"wallet_address"`
	Status        string     `gorm:"size:16;index;not null" json:"status"`
	ReviewedBy    *uint      `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	Note          string     `gorm:"size:255" json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (p *PayoutRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
