package services

import (
	"context"
	"math"

	"winledger/errutil"
	"winledger/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestPayout reserves available WIN for a withdrawal awaiting review.
func (e *Engine) RequestPayout(ctx context.Context, user models.User, amountUSD float64) (*models.PayoutRequest, error) {
	if math.IsNaN(amountUSD) || math.IsInf(amountUSD, 0) || amountUSD <= 0 {
		return nil, errutil.Validation("amount_usd must be positive")
	}

	now := e.now()
	amount := dec(amountUSD).Round(usdPlaces)

	var out models.PayoutRequest
	var win float64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pol, err := e.runtimePolicy(tx)
		if err != nil {
			return err
		}
		if amount.LessThan(dec(pol.MinWithdrawUSD)) {
			return errutil.Validation("minimum withdrawal is $%.2f", pol.MinWithdrawUSD)
		}

		var current models.User
		if err := tx.Select("id", "wallet_address").Take(&current, user.ID).Error; err != nil {
			return notFoundOr(err, "user not found")
		}
		if current.WalletAddress == "" {
			return errutil.Validation("connect a wallet before requesting a withdrawal")
		}

		if _, err := lockBalance(tx, user.ID); err != nil {
			return notFoundOr(err, "balance not found")
		}

		var today float64
		if err := tx.Model(&models.PayoutRequest{}).
			Where("user_id = ? AND status IN ? AND created_at >= ?",
				user.ID, []string{models.PayoutPending, models.PayoutApproved}, startOfDay(now)).
			Select("COALESCE(SUM(amount_usd), 0)").
			Scan(&today).Error; err != nil {
			return err
		}
		if dec(today).Add(amount).GreaterThan(dec(pol.DailyWithdrawLimitUSD)) {
			left := math.Max(0, roundUSD(pol.DailyWithdrawLimitUSD-today))
			return errutil.Conflict("daily withdrawal limit of $%.2f reached, $%.2f left today", pol.DailyWithdrawLimitUSD, left)
		}

		win = winFloat(amount.Div(dec(pol.TokenRateUSD)))
		ok, err := moveWin(tx, user.ID, 0, -win, now)
		if err != nil {
			return err
		}
		if !ok {
			return errutil.Conflict("insufficient available WIN")
		}

		out = models.PayoutRequest{
			UserID:        user.ID,
			AmountUSD:     usdFloat(amount),
			WinAmount:     win,
			WalletAddress: current.WalletAddress,
			Status:        models.PayoutPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("payout requested", zap.String("payout_id", out.ID), zap.Uint("user_id", user.ID), zap.Float64("win", win))
	return &out, nil
}

func (e *Engine) UserPayouts(ctx context.Context, userID uint) ([]models.PayoutRequest, error) {
	payouts := []models.PayoutRequest{}
	err := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&payouts).Error
	return payouts, err
}

func (e *Engine) ListPayouts(ctx context.Context, status string) ([]models.PayoutRequest, error) {
	q := e.db.WithContext(ctx).Order("created_at ASC").Limit(500)
	switch status {
	case "":
	case models.PayoutPending, models.PayoutApproved, models.PayoutRejected:
		q = q.Where("status = ?", status)
	default:
		return nil, errutil.Validation("invalid status %q", status)
	}

	payouts := []models.PayoutRequest{}
	err := q.Find(&payouts).Error
	return payouts, err
}

func (e *Engine) ApprovePayout(ctx context.Context, rawID string, admin models.User) (*models.PayoutRequest, error) {
	return e.reviewPayout(ctx, rawID, admin, models.PayoutApproved, "")
}

// RejectPayout returns the reserved WIN to the user's available balance.
func (e *Engine) RejectPayout(ctx context.Context, rawID string, admin models.User, note string) (*models.PayoutRequest, error) {
	return e.reviewPayout(ctx, rawID, admin, models.PayoutRejected, note)
}

func (e *Engine) reviewPayout(ctx context.Context, rawID string, admin models.User, status, note string) (*models.PayoutRequest, error) {
	id, err := parseID(rawID, "payout id")
	if err != nil {
		return nil, err
	}

	now := e.now()
	var out models.PayoutRequest
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&out, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "payout request not found")
		}
		if _, err := lockBalance(tx, out.UserID); err != nil {
			return err
		}

		res := tx.Model(&models.PayoutRequest{}).
			Where("id = ? AND status = ?", id, models.PayoutPending).
			Updates(map[string]any{
				"status":      status,
				"reviewed_by": admin.ID,
				"reviewed_at": now,
				"note":        note,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Take(&out, "id = ?", id).Error; err != nil {
				return err
			}
			return errutil.Conflict("payout request already %s", out.Status)
		}

		if status == models.PayoutRejected {
			if _, err := moveWin(tx, out.UserID, 0, out.WinAmount, now); err != nil {
				return err
			}
		}
		return tx.Take(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("payout reviewed", zap.String("payout_id", id), zap.String("status", status), zap.Uint("admin_id", admin.ID))
	return &out, nil
}
