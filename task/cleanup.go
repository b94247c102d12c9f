package tasks

import (
	"context"
	"time"

	"winledger/services"

	"go.uber.org/zap"
)

const (
	sessionRetention = 7 * 24 * time.Hour
	jobLockRetention = 30 * 24 * time.Hour
)

// Cleanup removes sessions that expired more than a week ago and job leases
// that nobody has taken for a month.
func Cleanup(ctx context.Context, e *services.Engine) error {
	now := e.Now()

	sessions, err := e.PurgeExpiredSessions(ctx, now.Add(-sessionRetention))
	if err != nil {
		zap.L().Error("failed to purge expired sessions", zap.Error(err))
		return err
	}

	locks, err := e.PurgeJobLocks(ctx, now.Add(-jobLockRetention))
	if err != nil {
		zap.L().Error("failed to purge job locks", zap.Error(err))
		return err
	}

	zap.L().Info("cleanup finished",
		zap.Int64("sessions_deleted", sessions),
		zap.Int64("job_locks_deleted", locks),
	)
	return nil
}
