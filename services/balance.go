package services

import (
	"context"
	"errors"
	"time"

	"winledger/models"

	"gorm.io/gorm"
)

type Dashboard struct {
	UserID                 uint    `json:"user_id"`
	Email                  string  `json:"email"`
	TokenBalance           float64 `json:"token_balance"`
	WinTokens              float64 `json:"win_tokens"`
	LockedWin              float64 `json:"locked_win"`
	AvailableWin           float64 `json:"available_win"`
	TotalWin               float64 `json:"total_win"`
	PendingRevenueUSD      float64 `json:"pending_revenue_usd"`
	PendingTokens          float64 `json:"pending_tokens"`
	TodayEarningsUSD       float64 `json:"today_earnings_usd"`
	TotalEarningsUSD       float64 `json:"total_earnings_usd"`
	ReferralEarningsUSD    float64 `json:"referral_earnings_usd"`
	ReferralEarningsTokens float64 `json:"referral_earnings_tokens"`
	ReferralCode           string  `json:"referral_code"`
	ReferredUsersCount     int64   `json:"referred_users_count"`
	Coins                  int64   `json:"coins"`
	GamesPlayed            int64   `json:"games_played"`
	TokenRateUSD           float64 `json:"token_rate_usd"`
	WalletAddress          string  `json:"wallet_address"`
}

func loadBalance(db *gorm.DB, userID uint) (models.UserBalance, error) {
	var bal models.UserBalance
	err := db.Where("user_id = ?", userID).Take(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserBalance{UserID: userID}, nil
	}
	return bal, err
}

func countReferrals(db *gorm.DB, userID uint) (int64, error) {
	var n int64
	err := db.Model(&models.User{}).Where("referred_by = ?", userID).Count(&n).Error
	return n, err
}

// Dashboard is a pure read of the materialized balance row.
func (e *Engine) Dashboard(ctx context.Context, user models.User) (*Dashboard, error) {
	db := e.db.WithContext(ctx)

	bal, err := loadBalance(db, user.ID)
	if err != nil {
		return nil, err
	}
	referred, err := countReferrals(db, user.ID)
	if err != nil {
		return nil, err
	}
	pol, err := e.runtimePolicy(db)
	if err != nil {
		return nil, err
	}

	today := bal.TodayEarningsUSD
	if bal.TodayDate != dayKey(e.now()) {
		today = 0
	}

	total := roundWin(bal.TotalWin())
	return &Dashboard{
		UserID:                 user.ID,
		Email:                  user.Email,
		TokenBalance:           total,
		WinTokens:              total,
		LockedWin:              roundWin(bal.LockedWin),
		AvailableWin:           roundWin(bal.AvailableWin),
		TotalWin:               total,
		PendingRevenueUSD:      roundUSD(bal.PendingRevenueUSD),
		PendingTokens:          pendingTokens(bal.PendingRevenueUSD, pol.TokenRateUSD),
		TodayEarningsUSD:       roundUSD(today),
		TotalEarningsUSD:       roundUSD(bal.TotalEarningsUSD),
		ReferralEarningsUSD:    roundUSD(bal.ReferralEarningsUSD),
		ReferralEarningsTokens: roundWin(bal.ReferralEarningsUSD * e.policy.WinPerUSD),
		ReferralCode:           user.ReferralCode,
		ReferredUsersCount:     referred,
		Coins:                  bal.GamesPlayed,
		GamesPlayed:            bal.GamesPlayed,
		TokenRateUSD:           pol.TokenRateUSD,
		WalletAddress:          user.WalletAddress,
	}, nil
}

// pendingTokens projects pending USD at the current token rate.
func pendingTokens(pendingUSD, rateUSD float64) float64 {
	f, _ := dec(pendingUSD).Div(dec(rateUSD)).Round(2).Float64()
	return f
}

type VestingView struct {
	ID         string    `json:"_id"`
	WinAmount  float64   `json:"win_amount"`
	UnlockDate time.Time `json:"unlock_date"`
	Status     string    `json:"status"`
}

type WinBalance struct {
	LockedWin        float64       `json:"locked_win"`
	AvailableWin     float64       `json:"available_win"`
	TotalWin         float64       `json:"total_win"`
	VestingSchedules []VestingView `json:"vesting_schedules"`
	VestingCount     int           `json:"vesting_count"`
}

// WinBalance promotes any schedule that became eligible, then reports the
// split between locked and available WIN.
func (e *Engine) WinBalance(ctx context.Context, user models.User) (*WinBalance, error) {
	if _, err := e.PromoteVesting(ctx, user.ID); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	bal, err := loadBalance(db, user.ID)
	if err != nil {
		return nil, err
	}

	var schedules []models.VestingSchedule
	if err := db.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(100).
		Find(&schedules).Error; err != nil {
		return nil, err
	}

	out := &WinBalance{
		LockedWin:        roundWin(bal.LockedWin),
		AvailableWin:     roundWin(bal.AvailableWin),
		TotalWin:         roundWin(bal.TotalWin()),
		VestingSchedules: make([]VestingView, 0, len(schedules)),
	}
	for _, s := range schedules {
		out.VestingSchedules = append(out.VestingSchedules, VestingView{
			ID:         s.ID,
			WinAmount:  roundWin(s.WinAmount),
			UnlockDate: s.UnlockDate,
			Status:     s.Status,
		})
		if s.Status == models.VestingLocked {
			out.VestingCount++
		}
	}
	return out, nil
}

type Reconciliation struct {
	UserID           uint    `json:"user_id"`
	StoredPendingUSD float64 `json:"stored_pending_usd"`
	LedgerPendingUSD float64 `json:"ledger_pending_usd"`
	PendingDriftUSD  float64 `json:"pending_drift_usd"`
	LockedWin        float64 `json:"locked_win"`
	VestingLockedWin float64 `json:"vesting_locked_win"`
	MGMLockedWin     float64 `json:"mgm_locked_win"`
	LockedDriftWin   float64 `json:"locked_drift_win"`
	AvailableWin     float64 `json:"available_win"`
	TotalWin         float64 `json:"total_win"`
	Consistent       bool    `json:"consistent"`
}

// Reconcile recomputes the user's aggregates from the ledger and reports
// any drift against the materialized row.
func (e *Engine) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	db := e.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id").Take(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	bal, err := loadBalance(db, userID)
	if err != nil {
		return nil, err
	}

	var lastEntry models.SettlementEntry
	since := time.Time{}
	err = db.Where("user_id = ?", userID).Order("created_at DESC").Take(&lastEntry).Error
	switch {
	case err == nil:
		since = lastEntry.CreatedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var ledgerPending float64
	if err := db.Model(&models.RevenueEvent{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Select("COALESCE(SUM(earned_usd), 0)").
		Scan(&ledgerPending).Error; err != nil {
		return nil, err
	}

	var vestingLocked float64
	if err := db.Model(&models.VestingSchedule{}).
		Where("user_id = ? AND status IN ?", userID, []string{models.VestingLocked, models.VestingUnlocked}).
		Select("COALESCE(SUM(win_amount), 0)").
		Scan(&vestingLocked).Error; err != nil {
		return nil, err
	}

	var mgmLocked float64
	if err := db.Model(&models.MGMSubscription{}).
		Where("user_id = ? AND (status IN ? OR (status = ? AND principal_held = ?))",
			userID, []string{models.MGMActive, models.MGMExpired}, models.MGMCancelled, true).
		Select("COALESCE(SUM(investment_win), 0)").
		Scan(&mgmLocked).Error; err != nil {
		return nil, err
	}

	pendingDrift := dec(bal.PendingRevenueUSD).Sub(dec(ledgerPending)).Round(usdPlaces)
	lockedDrift := dec(bal.LockedWin).Sub(dec(vestingLocked)).Sub(dec(mgmLocked)).Round(winPlaces)

	pd, _ := pendingDrift.Float64()
	ld, _ := lockedDrift.Float64()
	return &Reconciliation{
		UserID:           userID,
		StoredPendingUSD: roundUSD(bal.PendingRevenueUSD),
		LedgerPendingUSD: roundUSD(ledgerPending),
		PendingDriftUSD:  pd,
		LockedWin:        bal.LockedWin,
		VestingLockedWin: vestingLocked,
		MGMLockedWin:     mgmLocked,
		LockedDriftWin:   ld,
		AvailableWin:     bal.AvailableWin,
		TotalWin:         bal.TotalWin(),
		Consistent:       pendingDrift.IsZero() && lockedDrift.IsZero(),
	}, nil
}
