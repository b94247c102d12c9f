package services

import (
	"context"
	"strings"
	"time"

	"winledger/models"
)

type ReferredUser struct {
	Email    string    `json:"email_masked"`
	JoinedAt time.Time `json:"joined_at"`
}

type ReferralStats struct {
	ReferralCode           string         `json:"referral_code"`
	TotalReferrals         int64          `json:"total_referrals"`
	ReferralEarningsUSD    float64        `json:"referral_earnings_usd"`
	ReferralEarningsTokens float64        `json:"referral_earnings_tokens"`
	ReferredUsers          []ReferredUser `json:"referred_users"`
}

func (e *Engine) ReferralStats(ctx context.Context, user models.User) (*ReferralStats, error) {
	db := e.db.WithContext(ctx)

	bal, err := loadBalance(db, user.ID)
	if err != nil {
		return nil, err
	}

	var referred []models.User
	if err := db.Select("id", "email", "created_at").
		Where("referred_by = ?", user.ID).
		Order("created_at DESC").
		Find(&referred).Error; err != nil {
		return nil, err
	}

	out := &ReferralStats{
		ReferralCode:           user.ReferralCode,
		TotalReferrals:         int64(len(referred)),
		ReferralEarningsUSD:    roundUSD(bal.ReferralEarningsUSD),
		ReferralEarningsTokens: roundWin(bal.ReferralEarningsUSD * e.policy.WinPerUSD),
		ReferredUsers:          make([]ReferredUser, 0, len(referred)),
	}
	for _, u := range referred {
		out.ReferredUsers = append(out.ReferredUsers, ReferredUser{Email: MaskEmail(u.Email), JoinedAt: u.CreatedAt})
	}
	return out, nil
}

// MaskEmail keeps the first two characters of the local part.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + domain
}
