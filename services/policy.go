package services

import (
	"context"
	"errors"
	"math"
	"time"

	"winledger/config"
	"winledger/errutil"
	"winledger/helpers"
	"winledger/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RuntimeConfig is the admin view of the editable economics.
type RuntimeConfig struct {
	TokenRateUSD          float64    `json:"token_rate_usd"`
	PlatformFee           float64    `json:"platform_fee"`
	ReferralRate          float64    `json:"referral_rate"`
	MinWithdrawUSD        float64    `json:"min_withdraw_usd"`
	DailyWithdrawLimitUSD float64    `json:"daily_withdraw_limit_usd"`
	UpdatedBy             *uint      `json:"updated_by,omitempty"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
}

// RuntimeConfigUpdate is a partial update: nil fields keep their value.
type RuntimeConfigUpdate struct {
	TokenRateUSD          *float64 `json:"token_rate_usd" validate:"omitempty,gt=0"`
	PlatformFee           *float64 `json:"platform_fee" validate:"omitempty,gte=0,lt=1"`
	ReferralRate          *float64 `json:"referral_rate" validate:"omitempty,gte=0,lte=1"`
	MinWithdrawUSD        *float64 `json:"min_withdraw_usd" validate:"omitempty,gte=0"`
	DailyWithdrawLimitUSD *float64 `json:"daily_withdraw_limit_usd" validate:"omitempty,gt=0"`
}

func (u RuntimeConfigUpdate) empty() bool {
	return u.TokenRateUSD == nil && u.PlatformFee == nil && u.ReferralRate == nil &&
		u.MinWithdrawUSD == nil && u.DailyWithdrawLimitUSD == nil
}

func loadPolicySetting(db *gorm.DB) (*models.PolicySetting, error) {
	var row models.PolicySetting
	err := db.Take(&row, models.PolicySettingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// runtimePolicy overlays the stored policy row on the configured defaults.
func (e *Engine) runtimePolicy(db *gorm.DB) (config.Policy, error) {
	p := e.policy
	row, err := loadPolicySetting(db)
	if err != nil || row == nil {
		return p, err
	}
	p.TokenRateUSD = row.TokenRateUSD
	p.UserShare = winFloat(dec(1).Sub(dec(row.PlatformFee)))
	p.ReferralShare = row.ReferralRate
	p.MinWithdrawUSD = row.MinWithdrawUSD
	p.DailyWithdrawLimitUSD = row.DailyWithdrawLimitUSD
	return p, nil
}

func runtimeConfigFrom(p config.Policy) RuntimeConfig {
	return RuntimeConfig{
		TokenRateUSD:          p.TokenRateUSD,
		PlatformFee:           winFloat(dec(1).Sub(dec(p.UserShare))),
		ReferralRate:          p.ReferralShare,
		MinWithdrawUSD:        p.MinWithdrawUSD,
		DailyWithdrawLimitUSD: p.DailyWithdrawLimitUSD,
	}
}

func (e *Engine) AdminConfig(ctx context.Context) (*RuntimeConfig, error) {
	db := e.db.WithContext(ctx)
	row, err := loadPolicySetting(db)
	if err != nil {
		return nil, err
	}
	p, err := e.runtimePolicy(db)
	if err != nil {
		return nil, err
	}

	out := runtimeConfigFrom(p)
	if row != nil {
		updated := row.UpdatedAt
		out.UpdatedBy = row.UpdatedBy
		out.UpdatedAt = &updated
	}
	return &out, nil
}

// UpdateAdminConfig persists a partial change to the runtime policy. Later
// settlements, plays and withdrawals read the new values; settlements
// already proposed keep the rate they were created with.
func (e *Engine) UpdateAdminConfig(ctx context.Context, admin models.User, in RuntimeConfigUpdate) (*RuntimeConfig, error) {
	if err := helpers.ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, errutil.Validation("no config fields to update")
	}
	for _, v := range []*float64{in.TokenRateUSD, in.PlatformFee, in.ReferralRate, in.MinWithdrawUSD, in.DailyWithdrawLimitUSD} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return nil, errutil.Validation("config values must be finite")
		}
	}

	now := e.now()
	var out RuntimeConfig
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := e.runtimePolicy(tx)
		if err != nil {
			return err
		}
		cur := runtimeConfigFrom(p)
		if in.TokenRateUSD != nil {
			cur.TokenRateUSD = *in.TokenRateUSD
		}
		if in.PlatformFee != nil {
			cur.PlatformFee = *in.PlatformFee
		}
		if in.ReferralRate != nil {
			cur.ReferralRate = *in.ReferralRate
		}
		if in.MinWithdrawUSD != nil {
			cur.MinWithdrawUSD = *in.MinWithdrawUSD
		}
		if in.DailyWithdrawLimitUSD != nil {
			cur.DailyWithdrawLimitUSD = *in.DailyWithdrawLimitUSD
		}
		if cur.MinWithdrawUSD > cur.DailyWithdrawLimitUSD {
			return errutil.Validation("min_withdraw_usd cannot exceed daily_withdraw_limit_usd")
		}

		adminID := admin.ID
		row := models.PolicySetting{
			ID:                    models.PolicySettingID,
			TokenRateUSD:          cur.TokenRateUSD,
			PlatformFee:           cur.PlatformFee,
			ReferralRate:          cur.ReferralRate,
			MinWithdrawUSD:        cur.MinWithdrawUSD,
			DailyWithdrawLimitUSD: cur.DailyWithdrawLimitUSD,
			UpdatedBy:             &adminID,
			UpdatedAt:             now,
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		cur.UpdatedBy = &adminID
		cur.UpdatedAt = &now
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("runtime policy updated",
		zap.Uint("admin_id", admin.ID),
		zap.Float64("token_rate_usd", out.TokenRateUSD),
		zap.Float64("platform_fee", out.PlatformFee),
		zap.Float64("referral_rate", out.ReferralRate),
		zap.Float64("min_withdraw_usd", out.MinWithdrawUSD),
		zap.Float64("daily_withdraw_limit_usd", out.DailyWithdrawLimitUSD),
	)
	return &out, nil
}
