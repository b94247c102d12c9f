package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventKindGame       = "game"
	EventKindReferral   = "referral"
	EventKindAdjustment = "adjustment"
)

// RevenueEvent is append-only. Every balance aggregate derives from these rows.
type RevenueEvent struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     uint      `gorm:"index:idx_event_user_game,priority:1;not null" json:"user_id"`
	Kind       string    `gorm:"size:16;index;not null" json:"kind"`
	GameType   string    `gorm:"size:16;index:idx_event_user_game,priority:2" json:"game_type"`
	AdType     string    `gorm:"size:16" json:"ad_type"`
	AdWatched  bool      `json:"ad_watched"`
	WatchAgain bool      `json:"watch_again"`
	Country    string    `gorm:"size:2" json:"country"`
	CPMUSD     float64   `gorm:"type:numeric(24,6)" json:"cpm_usd"`
	RevenueUSD float64   `gorm:"type:numeric(24,6)" json:"revenue_usd"`
	EarnedUSD  float64   `gorm:"type:numeric(24,6)" json:"earned_usd"`
	Liquidity  float64   `gorm:"column:liquidity_usd;type:numeric(24,6)" json:"liquidity_usd"`
	WinTokens  float64   `gorm:"type:numeric(24,6)" json:"win_tokens"`
	SharePct   float64   `gorm:"type:numeric(6,4)" json:"share_pct"`
	SourceUser *uint     `json:"source_user,omitempty"`
	CreatedAt  time.Time `gorm:"index:idx_event_user_game,priority:3" json:"created_at"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}

func (e *RevenueEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate keeps the ledger immutable.
func (e *RevenueEvent) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}
