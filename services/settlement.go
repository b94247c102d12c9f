package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"winledger/errutil"
	"winledger/models"
	"winledger/observability"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TriggerSchedule = "schedule"
	TriggerAdmin    = "admin"

	settlementLock = "settlement"

	MsgNothingToSettle = "Nothing to settle"
)

var errNothingSettled = errors.New("no users settled")

type SettlementResult struct {
	Message      string               `json:"message"`
	Proposal     *models.Settlement   `json:"proposal"`
	SkippedUsers []models.SkippedUser `json:"skipped_users"`
}

// CreateSettlement converts every positive pending balance into a locked
// vesting grant and records one proposal awaiting admin approval. Users that
// fail are rolled back individually and reported as skipped. When nobody
// is settled no proposal is written.
func (e *Engine) CreateSettlement(ctx context.Context, trigger string) (*SettlementResult, error) {
	if !e.settleMu.TryLock() {
		return nil, errutil.Conflict("settlement already running")
	}
	defer e.settleMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.settlementTimeout)
	defer cancel()

	started := time.Now()
	var result *SettlementResult
	ok, err := e.WithJobLock(ctx, settlementLock, e.settlementTimeout+time.Minute, func(ctx context.Context) error {
		var err error
		result, err = e.runSettlement(ctx, trigger)
		return err
	})
	observability.SettlementDuration.Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		observability.SettlementRuns.WithLabelValues(trigger, "error").Inc()
		return nil, err
	case !ok:
		observability.SettlementRuns.WithLabelValues(trigger, "locked").Inc()
		return nil, errutil.Conflict("settlement already running")
	case result.Proposal == nil:
		observability.SettlementRuns.WithLabelValues(trigger, "empty").Inc()
	default:
		observability.SettlementRuns.WithLabelValues(trigger, "created").Inc()
	}
	return result, nil
}

func (e *Engine) runSettlement(ctx context.Context, trigger string) (*SettlementResult, error) {
	now := e.now()
	pol, err := e.runtimePolicy(e.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	rate := dec(pol.TokenRateUSD)
	share := dec(pol.SettlementUsersShare)
	unlock := now.Add(time.Duration(pol.VestingLockDays) * 24 * time.Hour)

	settlement := models.Settlement{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Status:       models.SettlementPendingApproval,
		Trigger:      trigger,
		TokenRateUSD: pol.TokenRateUSD,
	}
	skipped := []models.SkippedUser{}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var balances []models.UserBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pending_revenue_usd > 0").
			Order("user_id").
			Find(&balances).Error; err != nil {
			return err
		}
		if len(balances) == 0 {
			return errNothingSettled
		}

		ids := make([]uint, 0, len(balances))
		for _, b := range balances {
			ids = append(ids, b.UserID)
		}
		var users []models.User
		if err := tx.Select("id", "is_active").Where("id IN ?", ids).Find(&users).Error; err != nil {
			return err
		}
		active := make(map[uint]bool, len(users))
		for _, u := range users {
			active[u.ID] = u.IsActive
		}

		if err := tx.Omit(clause.Associations).Create(&settlement).Error; err != nil {
			return err
		}

		totalRevenue := decimal.Zero
		totalWin := decimal.Zero
		usersWin := decimal.Zero
		included := []uint{}

		for _, bal := range balances {
			if err := ctx.Err(); err != nil {
				return err
			}

			sp := fmt.Sprintf("sp_user_%d", bal.UserID)
			if err := tx.SavePoint(sp).Error; err != nil {
				return err
			}

			entry, err := e.settleUser(tx, settlement.ID, bal, active, rate, share, now, unlock)
			if err != nil {
				if rerr := tx.RollbackTo(sp).Error; rerr != nil {
					return rerr
				}
				skipped = append(skipped, models.SkippedUser{UserID: bal.UserID, Reason: err.Error()})
				e.log.Warn("settlement skipped user",
					zap.String("settlement_id", settlement.ID),
					zap.Uint("user_id", bal.UserID),
					zap.Error(err),
				)
				continue
			}

			included = append(included, bal.UserID)
			totalRevenue = totalRevenue.Add(dec(entry.RevenueUSD))
			totalWin = totalWin.Add(dec(entry.WinToBuy))
			usersWin = usersWin.Add(dec(entry.WinForUser))
			settlement.Entries = append(settlement.Entries, entry)
		}

		if len(included) == 0 {
			return errNothingSettled
		}

		settlement.TotalRevenueUSD = usdFloat(totalRevenue)
		settlement.TotalWinToBuy = winFloat(totalWin)
		settlement.WinForUsers70 = winFloat(usersWin)
		settlement.WinForLiquidity30 = winFloat(totalWin.Sub(usersWin))
		settlement.UsersCount = len(included)
		settlement.IncludedUsers = included
		settlement.SkippedUsers = skipped

		return tx.Model(&models.Settlement{}).
			Where("id = ?", settlement.ID).
			Updates(map[string]any{
				"total_revenue_usd":    settlement.TotalRevenueUSD,
				"total_win_to_buy":     settlement.TotalWinToBuy,
				"win_for_users_70":     settlement.WinForUsers70,
				"win_for_liquidity_30": settlement.WinForLiquidity30,
				"users_count":          settlement.UsersCount,
				"included_users":       settlement.IncludedUsers,
				"skipped_users":        settlement.SkippedUsers,
				"updated_at":           now,
			}).Error
	})

	if errors.Is(err, errNothingSettled) {
		observability.SettlementUsers.WithLabelValues("skipped").Add(float64(len(skipped)))
		e.log.Info("settlement found nothing to settle", zap.String("trigger", trigger), zap.Int("skipped", len(skipped)))
		return &SettlementResult{Message: MsgNothingToSettle, SkippedUsers: skipped}, nil
	}
	if err != nil {
		return nil, err
	}

	observability.SettlementUsers.WithLabelValues("included").Add(float64(settlement.UsersCount))
	observability.SettlementUsers.WithLabelValues("skipped").Add(float64(len(skipped)))
	e.log.Info("settlement created",
		zap.String("settlement_id", settlement.ID),
		zap.String("trigger", trigger),
		zap.Int("users", settlement.UsersCount),
		zap.Int("skipped", len(skipped)),
		zap.Float64("total_win_to_buy", settlement.TotalWinToBuy),
	)

	return &SettlementResult{
		Message: fmt.Sprintf("Settlement created for %d users: %.2f WIN to buy",
			settlement.UsersCount, settlement.TotalWinToBuy),
		Proposal:     &settlement,
		SkippedUsers: skipped,
	}, nil
}

// settleUser moves one user's snapshotted pending revenue into a locked
// vesting grant. The caller owns the savepoint.
func (e *Engine) settleUser(tx *gorm.DB, settlementID string, bal models.UserBalance, active map[uint]bool, rate, share decimal.Decimal, now, unlock time.Time) (models.SettlementEntry, error) {
	isActive, exists := active[bal.UserID]
	if !exists {
		return models.SettlementEntry{}, errors.New("user not found")
	}
	if !isActive {
		return models.SettlementEntry{}, errors.New("account inactive")
	}
	if !finite(bal.PendingRevenueUSD) || bal.PendingRevenueUSD <= 0 || rate.Sign() <= 0 {
		return models.SettlementEntry{}, fmt.Errorf("invalid pending revenue %v", bal.PendingRevenueUSD)
	}

	pending := dec(bal.PendingRevenueUSD)
	winToBuy := pending.Div(rate)
	winForUser := winFloat(winToBuy.Mul(share))
	if !finite(winForUser) || winForUser <= 0 {
		return models.SettlementEntry{}, fmt.Errorf("invalid win share %v", winForUser)
	}

	res := tx.Model(&models.UserBalance{}).
		Where("user_id = ? AND pending_revenue_usd >= ?", bal.UserID, bal.PendingRevenueUSD).
		Updates(map[string]any{
			"pending_revenue_usd": gorm.Expr("pending_revenue_usd - ?", bal.PendingRevenueUSD),
			"locked_win":          gorm.Expr("locked_win + ?", winForUser),
			"updated_at":          now,
		})
	if res.Error != nil {
		return models.SettlementEntry{}, res.Error
	}
	if res.RowsAffected != 1 {
		return models.SettlementEntry{}, errors.New("pending balance changed during settlement")
	}

	entry := models.SettlementEntry{
		SettlementID: settlementID,
		UserID:       bal.UserID,
		RevenueUSD:   bal.PendingRevenueUSD,
		WinToBuy:     winFloat(winToBuy),
		WinForUser:   winForUser,
		CreatedAt:    now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return models.SettlementEntry{}, err
	}

	schedule := models.VestingSchedule{
		UserID:       bal.UserID,
		SettlementID: settlementID,
		WinAmount:    winForUser,
		UnlockDate:   unlock,
		Status:       models.VestingLocked,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&schedule).Error; err != nil {
		return models.SettlementEntry{}, err
	}
	return entry, nil
}
