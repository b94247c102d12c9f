package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"winledger/config"
	"winledger/errutil"
	"winledger/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MGMPackage struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Cost        float64 `json:"cost"`
	DailyReward float64 `json:"daily_reward"`
	Days        int     `json:"days"`
	Limited     bool    `json:"limited"`
	SlotsTotal  int     `json:"slots_total,omitempty"`
}

var mgmPackages = []MGMPackage{
	{ID: "starter", Name: "Starter Mine", Cost: 500, DailyReward: 20, Days: 7},
	{ID: "pro", Name: "Pro Mine", Cost: 2000, DailyReward: 90, Days: 14},
	{ID: "elite", Name: "Elite Mine", Cost: 10000, DailyReward: 550, Days: 30, Limited: true, SlotsTotal: 100},
}

func findPackage(tier string) (MGMPackage, bool) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	for _, p := range mgmPackages {
		if p.ID == tier {
			return p, true
		}
	}
	return MGMPackage{}, false
}

const (
	mgmEarlyCancelPenalty = 1.0
	coinTicker            = "WIN"
)

// mgmAccrual recomputes the accumulated reward from elapsed whole days, so
// repeated evaluation never double counts.
func mgmAccrual(sub models.MGMSubscription, now time.Time) (float64, bool) {
	expired := !now.Before(sub.EndDate)
	days := int(now.Sub(sub.StartDate) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	if days > sub.DurationDays {
		days = sub.DurationDays
	}
	return winFloat(dec(sub.DailyRewardWin).Mul(dec(float64(days)))), expired
}

// refreshSubscription persists the recomputed accrual of an active
// subscription and expires it at its end date.
func refreshSubscription(tx *gorm.DB, sub *models.MGMSubscription, now time.Time) error {
	if sub.Status != models.MGMActive {
		return nil
	}

	acc, expired := mgmAccrual(*sub, now)
	if acc == sub.AccumulatedRewardsWin && !expired {
		return nil
	}

	updates := map[string]any{
		"accumulated_rewards_win": acc,
		"updated_at":              now,
	}
	if expired {
		updates["status"] = models.MGMExpired
	}

	res := tx.Model(&models.MGMSubscription{}).
		Where("id = ? AND status = ?", sub.ID, models.MGMActive).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		sub.AccumulatedRewardsWin = acc
		if expired {
			sub.Status = models.MGMExpired
		}
	}
	return nil
}

func currentSubscription(tx *gorm.DB, userID uint) (*models.MGMSubscription, error) {
	var sub models.MGMSubscription
	err := tx.Where("user_id = ? AND status IN ?", userID, []string{models.MGMActive, models.MGMExpired}).
		Order("id DESC").
		Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

type MGMSubscriptionView struct {
	Active             bool       `json:"active"`
	ID                 uint       `json:"id,omitempty"`
	Tier               string     `json:"tier,omitempty"`
	Status             string     `json:"status,omitempty"`
	Investment         float64    `json:"investment"`
	DailyReward        float64    `json:"daily_reward"`
	AccumulatedRewards float64    `json:"accumulated_rewards"`
	StartDate          *time.Time `json:"start_date"`
	EndDate            *time.Time `json:"end_date"`
	DaysRemaining      int        `json:"days_remaining"`
	IsExpired          bool       `json:"is_expired"`
	CanClaim           bool       `json:"can_claim"`
}

type MGMPackageView struct {
	MGMPackage
	TotalReward    float64 `json:"total_reward"`
	ROI            float64 `json:"roi"`
	Available      bool    `json:"available"`
	SlotsRemaining int     `json:"slots_remaining,omitempty"`
}

type MGMConfig struct {
	EarlyCancelPenalty float64 `json:"early_cancel_penalty"`
	CoinTicker         string  `json:"coin_ticker"`
	CancelPrincipal    string  `json:"cancel_principal"`
}

type MGMStatus struct {
	Subscription MGMSubscriptionView `json:"subscription"`
	Packages     []MGMPackageView    `json:"packages"`
	Config       MGMConfig           `json:"config"`
}

func (e *Engine) MGMStatus(ctx context.Context, user models.User) (*MGMStatus, error) {
	now := e.now()
	out := &MGMStatus{
		Config: MGMConfig{
			EarlyCancelPenalty: mgmEarlyCancelPenalty,
			CoinTicker:         coinTicker,
			CancelPrincipal:    e.policy.MGMCancelPrincipal,
		},
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := currentSubscription(tx, user.ID)
		if err != nil {
			return err
		}
		if sub != nil {
			if err := refreshSubscription(tx, sub, now); err != nil {
				return err
			}
			out.Subscription = subscriptionView(*sub, now)
		}

		packages, err := packageViews(tx)
		if err != nil {
			return err
		}
		out.Packages = packages
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func subscriptionView(sub models.MGMSubscription, now time.Time) MGMSubscriptionView {
	start, end := sub.StartDate, sub.EndDate
	remaining := 0
	if now.Before(end) {
		remaining = int((end.Sub(now) + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
	}
	expired := sub.Status == models.MGMExpired
	return MGMSubscriptionView{
		Active:             true,
		ID:                 sub.ID,
		Tier:               sub.Tier,
		Status:             sub.Status,
		Investment:         roundWin(sub.InvestmentWin),
		DailyReward:        roundWin(sub.DailyRewardWin),
		AccumulatedRewards: roundWin(sub.AccumulatedRewardsWin),
		StartDate:          &start,
		EndDate:            &end,
		DaysRemaining:      remaining,
		IsExpired:          expired,
		CanClaim:           expired,
	}
}

func packageViews(tx *gorm.DB) ([]MGMPackageView, error) {
	views := make([]MGMPackageView, 0, len(mgmPackages))
	for _, p := range mgmPackages {
		total := dec(p.DailyReward).Mul(dec(float64(p.Days)))
		roi, _ := total.Div(dec(p.Cost)).Mul(dec(100)).Round(2).Float64()
		v := MGMPackageView{
			MGMPackage:  p,
			TotalReward: winFloat(total),
			ROI:         roi,
			Available:   true,
		}
		if p.Limited {
			taken, err := countActiveTier(tx, p.ID)
			if err != nil {
				return nil, err
			}
			v.SlotsRemaining = max(p.SlotsTotal-int(taken), 0)
			v.Available = v.SlotsRemaining > 0
		}
		views = append(views, v)
	}
	return views, nil
}

func countActiveTier(tx *gorm.DB, tier string) (int64, error) {
	var n int64
	err := tx.Model(&models.MGMSubscription{}).
		Where("tier = ? AND status = ?", tier, models.MGMActive).
		Count(&n).Error
	return n, err
}

// SubscribeMGM locks the package cost out of available WIN.
func (e *Engine) SubscribeMGM(ctx context.Context, user models.User, tier string) (*models.MGMSubscription, error) {
	pkg, ok := findPackage(tier)
	if !ok {
		return nil, errutil.Validation("unknown MGM tier %q", tier)
	}

	now := e.now()
	var sub models.MGMSubscription
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockBalance(tx, user.ID); err != nil {
			return notFoundOr(err, "balance not found")
		}

		existing, err := currentSubscription(tx, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := refreshSubscription(tx, existing, now); err != nil {
				return err
			}
			if existing.Status == models.MGMExpired {
				return errutil.Conflict("claim your matured MGM subscription first")
			}
			return errutil.Conflict("an MGM subscription is already active")
		}

		if pkg.Limited {
			taken, err := countActiveTier(tx, pkg.ID)
			if err != nil {
				return err
			}
			if int(taken) >= pkg.SlotsTotal {
				return errutil.Conflict("no %s slots remaining", pkg.Name)
			}
		}

		ok, err := moveWin(tx, user.ID, pkg.Cost, -pkg.Cost, now)
		if err != nil {
			return err
		}
		if !ok {
			return errutil.Conflict("insufficient available WIN: %s costs %.0f WIN", pkg.Name, pkg.Cost)
		}

		sub = models.MGMSubscription{
			UserID:         user.ID,
			Tier:           pkg.ID,
			InvestmentWin:  pkg.Cost,
			DailyRewardWin: pkg.DailyReward,
			DurationDays:   pkg.Days,
			StartDate:      now,
			EndDate:        now.Add(time.Duration(pkg.Days) * 24 * time.Hour),
			Status:         models.MGMActive,
		}
		sub.CreatedAt = now
		sub.UpdatedAt = now
		return tx.Create(&sub).Error
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("mgm subscribed", zap.Uint("user_id", user.ID), zap.String("tier", pkg.ID))
	return &sub, nil
}

type MGMClaimResult struct {
	Success   bool    `json:"success"`
	Principal float64 `json:"principal"`
	Rewards   float64 `json:"rewards"`
	Total     float64 `json:"total"`
	Message   string  `json:"message"`
}

// ClaimMGM pays out a matured subscription: principal and rewards both land
// in available WIN.
func (e *Engine) ClaimMGM(ctx context.Context, user models.User) (*MGMClaimResult, error) {
	now := e.now()
	var out MGMClaimResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockBalance(tx, user.ID); err != nil {
			return notFoundOr(err, "balance not found")
		}

		sub, err := currentSubscription(tx, user.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			return e.noOpenSubscription(tx, user.ID)
		}
		if err := refreshSubscription(tx, sub, now); err != nil {
			return err
		}
		if sub.Status != models.MGMExpired {
			days := int((sub.EndDate.Sub(now) + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
			return errutil.Conflict("MGM subscription matures in %d days", days)
		}

		res := tx.Model(&models.MGMSubscription{}).
			Where("id = ? AND status = ?", sub.ID, models.MGMExpired).
			Updates(map[string]any{
				"status":     models.MGMClaimed,
				"claimed_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.AlreadyClaimed()
		}

		total := winFloat(dec(sub.InvestmentWin).Add(dec(sub.AccumulatedRewardsWin)))
		ok, err := moveWin(tx, user.ID, -sub.InvestmentWin, total, now)
		if err != nil {
			return err
		}
		if !ok {
			return errutil.Internal("locked balance below MGM principal", nil)
		}

		out = MGMClaimResult{
			Success:   true,
			Principal: roundWin(sub.InvestmentWin),
			Rewards:   roundWin(sub.AccumulatedRewardsWin),
			Total:     roundWin(total),
			Message:   fmt.Sprintf("Claimed %.2f WIN", total),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) noOpenSubscription(tx *gorm.DB, userID uint) error {
	var last models.MGMSubscription
	err := tx.Where("user_id = ?", userID).Order("id DESC").Take(&last).Error
	if err == nil && last.Status == models.MGMClaimed {
		return errutil.AlreadyClaimed()
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return errutil.NotFound("no open MGM subscription")
}

type MGMCancelResult struct {
	Success           bool    `json:"success"`
	ForfeitedRewards  float64 `json:"forfeited_rewards"`
	PrincipalRefunded bool    `json:"principal_refunded"`
	PrincipalHeld     bool    `json:"principal_held"`
	RefundedAmount    float64 `json:"refunded_amount"`
	Message           string  `json:"message"`
}

// CancelMGM ends an active subscription early. Accumulated rewards are
// forfeited in full; the principal follows MGM_CANCEL_PRINCIPAL. Under the
// default hold policy it stays locked until ResolveMGMPrincipal runs.
func (e *Engine) CancelMGM(ctx context.Context, user models.User) (*MGMCancelResult, error) {
	now := e.now()
	mode := e.policy.MGMCancelPrincipal
	if mode == "" {
		mode = config.PrincipalHold
	}
	refund := mode == config.PrincipalRefund
	held := mode == config.PrincipalHold

	var out MGMCancelResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockBalance(tx, user.ID); err != nil {
			return notFoundOr(err, "balance not found")
		}

		sub, err := currentSubscription(tx, user.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			return errutil.NotFound("no active MGM subscription")
		}
		if err := refreshSubscription(tx, sub, now); err != nil {
			return err
		}
		if sub.Status == models.MGMExpired {
			return errutil.Conflict("MGM subscription has matured, claim it instead")
		}

		forfeited := sub.AccumulatedRewardsWin
		res := tx.Model(&models.MGMSubscription{}).
			Where("id = ? AND status = ?", sub.ID, models.MGMActive).
			Updates(map[string]any{
				"status":                  models.MGMCancelled,
				"accumulated_rewards_win": 0,
				"forfeited_win":           forfeited,
				"principal_refunded":      refund,
				"principal_held":          held,
				"cancelled_at":            now,
				"updated_at":              now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("MGM subscription is no longer active")
		}

		available := 0.0
		if refund {
			available = sub.InvestmentWin
		}
		if !held {
			ok, err := moveWin(tx, user.ID, -sub.InvestmentWin, available, now)
			if err != nil {
				return err
			}
			if !ok {
				return errutil.Internal("locked balance below MGM principal", nil)
			}
		}

		out = MGMCancelResult{
			Success:           true,
			ForfeitedRewards:  roundWin(forfeited),
			PrincipalRefunded: refund,
			PrincipalHeld:     held,
			RefundedAmount:    roundWin(available),
		}
		switch {
		case held:
			out.Message = fmt.Sprintf("Subscription cancelled. %.2f WIN rewards forfeited, principal held for review", forfeited)
		case refund:
			out.Message = fmt.Sprintf("Subscription cancelled. %.2f WIN rewards forfeited, principal returned", forfeited)
		default:
			out.Message = fmt.Sprintf("Subscription cancelled. %.2f WIN rewards and principal forfeited", forfeited)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("mgm cancelled",
		zap.Uint("user_id", user.ID),
		zap.Float64("forfeited", out.ForfeitedRewards),
		zap.String("principal", mode),
	)
	return &out, nil
}

// HeldMGMSubscriptions lists cancelled subscriptions whose principal is still
// locked, oldest first.
func (e *Engine) HeldMGMSubscriptions(ctx context.Context, limit int) ([]models.MGMSubscription, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var subs []models.MGMSubscription
	err := e.db.WithContext(ctx).
		Where("status = ? AND principal_held = ?", models.MGMCancelled, true).
		Order("cancelled_at ASC, id ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// ResolveMGMPrincipal releases the held principal of a cancelled subscription,
// either back to available WIN (refund) or out of the balance (forfeit).
func (e *Engine) ResolveMGMPrincipal(ctx context.Context, admin models.User, subID uint, action string) (*models.MGMSubscription, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != config.PrincipalRefund && action != config.PrincipalForfeit {
		return nil, errutil.Validation("action must be refund or forfeit")
	}

	now := e.now()
	var sub models.MGMSubscription
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&sub, subID).Error; err != nil {
			return notFoundOr(err, "MGM subscription not found")
		}
		if sub.Status != models.MGMCancelled || !sub.PrincipalHeld {
			return errutil.Conflict("MGM subscription has no held principal")
		}
		if _, err := lockBalance(tx, sub.UserID); err != nil {
			return notFoundOr(err, "balance not found")
		}

		refund := action == config.PrincipalRefund
		updates := map[string]any{
			"principal_held":        false,
			"principal_refunded":    refund,
			"principal_resolved_by": admin.ID,
			"principal_resolved_at": now,
			"updated_at":            now,
		}
		if !refund {
			updates["forfeited_win"] = winFloat(dec(sub.ForfeitedWin).Add(dec(sub.InvestmentWin)))
		}
		res := tx.Model(&models.MGMSubscription{}).
			Where("id = ? AND status = ? AND principal_held = ?", sub.ID, models.MGMCancelled, true).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("MGM subscription has no held principal")
		}

		available := 0.0
		if refund {
			available = sub.InvestmentWin
		}
		ok, err := moveWin(tx, sub.UserID, -sub.InvestmentWin, available, now)
		if err != nil {
			return err
		}
		if !ok {
			return errutil.Internal("locked balance below MGM principal", nil)
		}
		return tx.Take(&sub, sub.ID).Error
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("mgm principal resolved",
		zap.Uint("subscription_id", sub.ID),
		zap.Uint("user_id", sub.UserID),
		zap.String("action", action),
		zap.Uint("admin_id", admin.ID),
	)
	return &sub, nil
}

// SweepMGM refreshes accrual on every active subscription and expires the
// ones past their end date.
func (e *Engine) SweepMGM(ctx context.Context) (expired int, err error) {
	var subs []models.MGMSubscription
	if err := e.db.WithContext(ctx).Where("status = ?", models.MGMActive).Find(&subs).Error; err != nil {
		return 0, err
	}

	now := e.now()
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := refreshSubscription(e.db.WithContext(ctx), &subs[i], now); err != nil {
			e.log.Warn("mgm refresh", zap.Uint("subscription_id", subs[i].ID), zap.Error(err))
			continue
		}
		if subs[i].Status == models.MGMExpired {
			expired++
		}
	}
	return expired, nil
}
