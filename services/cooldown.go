package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"winledger/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cooldown decides whether a game play may proceed. It returns the time left
// in the window when the play must be rejected, or zero.
type Cooldown interface {
	Acquire(ctx context.Context, tx *gorm.DB, userID uint, gameType string, window time.Duration, now time.Time) (time.Duration, error)
}

// LedgerCooldown derives the window from the user's latest game event. It
// must run inside the ingest transaction after the balance row is locked.
type LedgerCooldown struct{}

func (LedgerCooldown) Acquire(ctx context.Context, tx *gorm.DB, userID uint, gameType string, window time.Duration, now time.Time) (time.Duration, error) {
	var last models.RevenueEvent
	err := tx.WithContext(ctx).
		Select("created_at").
		Where("user_id = ? AND kind = ? AND game_type = ?", userID, models.EventKindGame, gameType).
		Order("created_at DESC").
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if elapsed := now.Sub(last.CreatedAt); elapsed < window {
		return window - elapsed, nil
	}
	return 0, nil
}

// RedisCooldown shares cooldown windows across instances with SET NX PX.
type RedisCooldown struct {
	Client *redis.Client
	Prefix string
}

func NewRedisCooldown(client *redis.Client) *RedisCooldown {
	return &RedisCooldown{Client: client, Prefix: "winledger:cooldown"}
}

func (r *RedisCooldown) key(userID uint, gameType string) string {
	return fmt.Sprintf("%s:%d:%s", r.Prefix, userID, gameType)
}

func (r *RedisCooldown) Acquire(ctx context.Context, _ *gorm.DB, userID uint, gameType string, window time.Duration, _ time.Time) (time.Duration, error) {
	key := r.key(userID, gameType)

	ok, err := r.Client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown acquire: %w", err)
	}
	if ok {
		return 0, nil
	}

	ttl, err := r.Client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cooldown ttl: %w", err)
	}
	if ttl <= 0 {
		// key expired between SETNX and PTTL
		return time.Millisecond, nil
	}
	return ttl, nil
}

// Release drops the window, used when the play it guarded was rolled back.
func (r *RedisCooldown) Release(ctx context.Context, userID uint, gameType string) error {
	return r.Client.Del(ctx, r.key(userID, gameType)).Err()
}

type releaser interface {
	Release(ctx context.Context, userID uint, gameType string) error
}
