package models

import "time"

// PolicySettingID is the primary key of the single runtime policy row.
const PolicySettingID = 1

// PolicySetting holds the admin-editable economics. A missing row means the
// environment defaults apply.
type PolicySetting struct {
	ID                    uint      `gorm:"primaryKey;autoIncrement:false" json:"-"`
	TokenRateUSD          float64   `gorm:"type:numeric(24,8);not null" json:"token_rate_usd"`
	PlatformFee           float64   `gorm:"type:numeric(6,4);not null" json:"platform_fee"`
	ReferralRate          float64   `gorm:"type:numeric(6,4);not null" json:"referral_rate"`
	MinWithdrawUSD        float64   `gorm:"type:numeric(24,6);not null" json:"min_withdraw_usd"`
	DailyWithdrawLimitUSD float64   `gorm:"type:numeric(24,6);not null" json:"daily_withdraw_limit_usd"`
	UpdatedBy             *uint     `json:"updated_by,omitempty"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}
