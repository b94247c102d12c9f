package services

import (
	"time"

	"winledger/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ensureBalance creates the balance row for userID if it does not exist yet.
func ensureBalance(tx *gorm.DB, userID uint, now time.Time) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserBalance{UserID: userID, CreatedAt: now, UpdatedAt: now}).Error
}

// lockBalance reads the balance row FOR UPDATE.
func lockBalance(tx *gorm.DB, userID uint) (models.UserBalance, error) {
	var bal models.UserBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&bal).Error
	return bal, err
}

type pendingCredit struct {
	amount   float64
	games    int64
	referral bool
}

// creditPending adds to pending revenue with in-place increments so
// concurrent plays never lose updates.
func creditPending(tx *gorm.DB, userID uint, c pendingCredit, now time.Time) error {
	today := dayKey(now)
	updates := map[string]any{
		"pending_revenue_usd": gorm.Expr("pending_revenue_usd + ?", c.amount),
		"updated_at":          now,
	}
	if c.referral {
		updates["referral_earnings_usd"] = gorm.Expr("referral_earnings_usd + ?", c.amount)
	} else {
		updates["total_earnings_usd"] = gorm.Expr("total_earnings_usd + ?", c.amount)
		updates["today_earnings_usd"] = gorm.Expr(
			"CASE WHEN today_date = ? THEN today_earnings_usd + ? ELSE ? END", today, c.amount, c.amount)
		updates["today_date"] = today
		updates["games_played"] = gorm.Expr("games_played + ?", c.games)
	}

	return tx.Model(&models.UserBalance{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

// moveWin shifts WIN between the locked and available columns. A positive
// delta on either column is a credit; debits are guarded so the column can
// never go negative.
func moveWin(tx *gorm.DB, userID uint, lockedDelta, availableDelta float64, now time.Time) (bool, error) {
	q := tx.Model(&models.UserBalance{}).Where("user_id = ?", userID)
	if lockedDelta < 0 {
		q = q.Where("locked_win >= ?", -lockedDelta)
	}
	if availableDelta < 0 {
		q = q.Where("available_win >= ?", -availableDelta)
	}

	res := q.Updates(map[string]any{
		"locked_win":    gorm.Expr("locked_win + ?", lockedDelta),
		"available_win": gorm.Expr("available_win + ?", availableDelta),
		"updated_at":    now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
