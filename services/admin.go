package services

import (
	"context"
	"math"
	"strings"

	"winledger/errutil"
	"winledger/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (e *Engine) GetSettlement(ctx context.Context, rawID string) (*models.Settlement, error) {
	id, err := parseID(rawID, "settlement_id")
	if err != nil {
		return nil, err
	}

	var s models.Settlement
	if err := e.db.WithContext(ctx).Preload("Entries").Take(&s, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "settlement not found")
	}
	return &s, nil
}

// ApproveSettlement signs off a proposal. Only pending_approval moves.
func (e *Engine) ApproveSettlement(ctx context.Context, rawID string, admin models.User) (*models.Settlement, error) {
	id, err := parseID(rawID, "settlement_id")
	if err != nil {
		return nil, err
	}

	now := e.now()
	var out models.Settlement
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Settlement{}).
			Where("id = ? AND status = ?", id, models.SettlementPendingApproval).
			Updates(map[string]any{
				"status":      models.SettlementApproved,
				"approved_by": admin.ID,
				"approved_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}

		if err := tx.Take(&out, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "settlement not found")
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("settlement is %s, only pending_approval can be approved", out.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("settlement approved", zap.String("settlement_id", id), zap.Uint("admin_id", admin.ID))
	return &out, nil
}

// ExecuteSettlement records the on-chain transaction signatures. Executed
// settlements are terminal and never rewritten.
func (e *Engine) ExecuteSettlement(ctx context.Context, rawID string, signatures []string, admin models.User) (*models.Settlement, error) {
	id, err := parseID(rawID, "settlement_id")
	if err != nil {
		return nil, err
	}

	sigs := cleanSignatures(signatures)
	if len(sigs) == 0 {
		return nil, errutil.Validation("at least one transaction signature is required")
	}

	now := e.now()
	var out models.Settlement
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Settlement{}).
			Where("id = ? AND status = ?", id, models.SettlementApproved).
			Updates(map[string]any{
				"status":                 models.SettlementExecuted,
				"transaction_signatures": datatypes.JSONSlice[string](sigs),
				"executed_by":            admin.ID,
				"executed_at":            now,
				"updated_at":             now,
			})
		if res.Error != nil {
			return res.Error
		}

		if err := tx.Take(&out, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "settlement not found")
		}
		if res.RowsAffected == 0 {
			switch out.Status {
			case models.SettlementExecuted:
				return errutil.Conflict("settlement already executed")
			case models.SettlementPendingApproval:
				return errutil.Conflict("settlement must be approved first")
			default:
				return errutil.Conflict("settlement is %s", out.Status)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("settlement executed",
		zap.String("settlement_id", id),
		zap.Uint("admin_id", admin.ID),
		zap.Strings("transaction_signatures", sigs),
	)
	return &out, nil
}

// cleanSignatures accepts a list whose items may themselves be
// comma-separated, trims each and drops blanks and duplicates.
func cleanSignatures(in []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			sig := strings.TrimSpace(part)
			if sig == "" {
				continue
			}
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			out = append(out, sig)
		}
	}
	return out
}

func (e *Engine) SettlementHistory(ctx context.Context, limit int) ([]models.Settlement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	settlements := []models.Settlement{}
	err := e.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&settlements).Error
	return settlements, err
}

// PendingSettlements is the admin action queue.
func (e *Engine) PendingSettlements(ctx context.Context) ([]models.Settlement, error) {
	settlements := []models.Settlement{}
	err := e.db.WithContext(ctx).
		Where("status IN ?", []string{models.SettlementPendingApproval, models.SettlementApproved}).
		Order("created_at DESC").
		Find(&settlements).Error
	return settlements, err
}

const maxTestRevenueUSD = 1000

// AddTestRevenue credits amountUSD of pending revenue to every active user
// through an adjustment event.
func (e *Engine) AddTestRevenue(ctx context.Context, amountUSD float64) (int64, error) {
	if math.IsNaN(amountUSD) || amountUSD <= 0 || amountUSD > maxTestRevenueUSD {
		return 0, errutil.Validation("amount_usd must be between 0 and %d", maxTestRevenueUSD)
	}
	amount := roundUSD(amountUSD)
	now := e.now()

	var updated int64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.User{}).Where("is_active = ?", true).Order("id").Pluck("id", &ids).Error; err != nil {
			return err
		}

		for _, id := range ids {
			if err := ensureBalance(tx, id, now); err != nil {
				return err
			}
			if err := creditPending(tx, id, pendingCredit{amount: amount}, now); err != nil {
				return err
			}
			ev := models.RevenueEvent{
				UserID:     id,
				Kind:       models.EventKindAdjustment,
				RevenueUSD: amount,
				EarnedUSD:  amount,
				WinTokens:  winFloat(dec(amount).Mul(dec(e.policy.WinPerUSD))),
				SharePct:   1,
				CreatedAt:  now,
			}
			if err := tx.Create(&ev).Error; err != nil {
				return err
			}
		}
		updated = int64(len(ids))
		return nil
	})
	return updated, err
}
