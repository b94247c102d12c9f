package services

import (
	"context"
	"time"

	"winledger/errutil"
	"winledger/models"
	"winledger/observability"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type KYCRequirements struct {
	MinAccountDays int     `json:"min_account_days"`
	MinDailyUSD    float64 `json:"min_daily_usd"`
	MinReferrals   int     `json:"min_referrals"`
}

type KYCStatus struct {
	DaysOK          bool            `json:"days_ok"`
	DailyEarningOK  bool            `json:"daily_earning_ok"`
	ReferralsOK     bool            `json:"referrals_ok"`
	Eligible        bool            `json:"eligible"`
	AccountAgeDays  int             `json:"account_age_days"`
	AverageDailyUSD float64         `json:"average_daily_usd"`
	ReferralCount   int64           `json:"referral_count"`
	Requirements    KYCRequirements `json:"requirements"`
}

// evaluateKYC checks the three unlock criteria. All must hold at once.
func (e *Engine) evaluateKYC(db *gorm.DB, user models.User, now time.Time) (KYCStatus, error) {
	bal, err := loadBalance(db, user.ID)
	if err != nil {
		return KYCStatus{}, err
	}
	referrals, err := countReferrals(db, user.ID)
	if err != nil {
		return KYCStatus{}, err
	}

	days := int(now.Sub(user.CreatedAt) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	divisor := days
	if divisor < 1 {
		divisor = 1
	}
	avg := dec(bal.TotalEarningsUSD).Div(dec(float64(divisor)))

	st := KYCStatus{
		AccountAgeDays:  days,
		AverageDailyUSD: usdFloat(avg),
		ReferralCount:   referrals,
		Requirements: KYCRequirements{
			MinAccountDays: e.policy.VestingLockDays,
			MinDailyUSD:    e.policy.KYCMinDailyUSD,
			MinReferrals:   e.policy.KYCMinReferrals,
		},
	}
	st.DaysOK = days >= e.policy.VestingLockDays
	st.DailyEarningOK = avg.GreaterThanOrEqual(dec(e.policy.KYCMinDailyUSD))
	st.ReferralsOK = referrals >= int64(e.policy.KYCMinReferrals)
	st.Eligible = st.DaysOK && st.DailyEarningOK && st.ReferralsOK
	return st, nil
}

func (e *Engine) KYCStatus(ctx context.Context, user models.User) (KYCStatus, error) {
	return e.evaluateKYC(e.db.WithContext(ctx), user, e.now())
}

// PromoteVesting unlocks every due schedule of the user when the KYC gate is
// met. Schedules stay locked past their unlock date otherwise.
func (e *Engine) PromoteVesting(ctx context.Context, userID uint) (int64, error) {
	db := e.db.WithContext(ctx)
	now := e.now()

	var user models.User
	if err := db.Take(&user, userID).Error; err != nil {
		return 0, notFoundOr(err, "user not found")
	}

	kyc, err := e.evaluateKYC(db, user, now)
	if err != nil {
		return 0, err
	}
	if !kyc.Eligible {
		return 0, nil
	}

	res := db.Model(&models.VestingSchedule{}).
		Where("user_id = ? AND status = ? AND unlock_date <= ?", userID, models.VestingLocked, now).
		Updates(map[string]any{
			"status":      models.VestingUnlocked,
			"unlocked_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		observability.VestingUnlocked.Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// PromoteAllVesting runs PromoteVesting for every user with a due schedule.
func (e *Engine) PromoteAllVesting(ctx context.Context) (int64, error) {
	var userIDs []uint
	if err := e.db.WithContext(ctx).Model(&models.VestingSchedule{}).
		Where("status = ? AND unlock_date <= ?", models.VestingLocked, e.now()).
		Distinct().
		Pluck("user_id", &userIDs).Error; err != nil {
		return 0, err
	}

	var total int64
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := e.PromoteVesting(ctx, id)
		if err != nil {
			e.log.Warn("promote vesting", zap.Uint("user_id", id), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

type VestingClaimResult struct {
	Success      bool    `json:"success"`
	ScheduleID   string  `json:"schedule_id"`
	ClaimedWin   float64 `json:"claimed_win"`
	LockedWin    float64 `json:"locked_win"`
	AvailableWin float64 `json:"available_win"`
	Message      string  `json:"message"`
}

// ClaimVesting moves an unlocked schedule into available WIN. A second claim
// fails with "already claimed" and leaves balances untouched.
func (e *Engine) ClaimVesting(ctx context.Context, user models.User, rawID string) (*VestingClaimResult, error) {
	id, err := parseID(rawID, "schedule_id")
	if err != nil {
		return nil, err
	}
	if _, err := e.PromoteVesting(ctx, user.ID); err != nil {
		return nil, err
	}

	now := e.now()
	var out VestingClaimResult
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockBalance(tx, user.ID); err != nil {
			return notFoundOr(err, "balance not found")
		}

		var sched models.VestingSchedule
		if err := tx.Where("id = ? AND user_id = ?", id, user.ID).Take(&sched).Error; err != nil {
			return notFoundOr(err, "vesting schedule not found")
		}

		res := tx.Model(&models.VestingSchedule{}).
			Where("id = ? AND status = ?", id, models.VestingUnlocked).
			Updates(map[string]any{
				"status":     models.VestingClaimed,
				"claimed_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if sched.Status == models.VestingClaimed {
				return errutil.AlreadyClaimed()
			}
			return errutil.Conflict("vesting schedule is still locked until %s", sched.UnlockDate.Format(time.RFC3339))
		}

		ok, err := moveWin(tx, user.ID, -sched.WinAmount, sched.WinAmount, now)
		if err != nil {
			return err
		}
		if !ok {
			return errutil.Internal("locked balance below schedule amount", nil)
		}

		bal, err := loadBalance(tx, user.ID)
		if err != nil {
			return err
		}
		out = VestingClaimResult{
			Success:      true,
			ScheduleID:   sched.ID,
			ClaimedWin:   roundWin(sched.WinAmount),
			LockedWin:    roundWin(bal.LockedWin),
			AvailableWin: roundWin(bal.AvailableWin),
			Message:      "Vesting claimed",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
