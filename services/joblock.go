package services

import (
	"context"
	"time"

	"winledger/models"

	"gorm.io/gorm/clause"
)

// AcquireJobLock takes the named lease for ttl. It returns false when another
// holder owns an unexpired lease.
func (e *Engine) AcquireJobLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := e.now()
	db := e.db.WithContext(ctx)

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.JobLock{Name: name, LockedUntil: now.Add(-time.Second), UpdatedAt: now}).Error; err != nil {
		return false, err
	}

	res := db.Model(&models.JobLock{}).
		Where("name = ? AND locked_until < ?", name, now).
		Updates(map[string]any{
			"holder":       e.holder,
			"locked_until": now.Add(ttl),
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseJobLock ends a lease held by this engine.
func (e *Engine) ReleaseJobLock(ctx context.Context, name string) error {
	now := e.now()
	return e.db.WithContext(ctx).Model(&models.JobLock{}).
		Where("name = ? AND holder = ?", name, e.holder).
		Updates(map[string]any{
			"locked_until": now.Add(-time.Second),
			"updated_at":   now,
		}).Error
}

// WithJobLock runs fn while holding the named lease. ok is false when the
// lease is held elsewhere and fn did not run.
func (e *Engine) WithJobLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (ok bool, err error) {
	acquired, err := e.AcquireJobLock(ctx, name, ttl)
	if err != nil || !acquired {
		return false, err
	}
	defer func() {
		if rerr := e.ReleaseJobLock(context.WithoutCancel(ctx), name); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return true, fn(ctx)
}

// PurgeJobLocks deletes leases that have been free since before cutoff.
func (e *Engine) PurgeJobLocks(ctx context.Context, cutoff time.Time) (int64, error) {
	res := e.db.WithContext(ctx).Where("locked_until < ?", cutoff).Delete(&models.JobLock{})
	return res.RowsAffected, res.Error
}
