package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"winledger/config"
	"winledger/errutil"
	"winledger/models"
	"winledger/observability"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PlayInput struct {
	GameType   string
	AdWatched  bool
	WatchAgain bool
	Country    string
}

type PlayResult struct {
	EventID           string  `json:"event_id"`
	GameType          string  `json:"game_type"`
	AdWatched         bool    `json:"ad_watched"`
	EarnedUSD         float64 `json:"earned_usd"`
	TotalRevenueUSD   float64 `json:"total_revenue_usd"`
	LiquidityUSD      float64 `json:"liquidity_usd"`
	WinTokens         float64 `json:"win_tokens"`
	PendingRevenueUSD float64 `json:"pending_revenue_usd"`
	GeoInfo           string  `json:"geo_info"`
	CooldownSeconds   int     `json:"cooldown_seconds"`
}

// RecordGamePlay appends one game event and credits the user's share of the
// ad revenue to pending. Referrers receive their bonus in the same
// transaction.
func (e *Engine) RecordGamePlay(ctx context.Context, user models.User, in PlayInput) (*PlayResult, error) {
	gameType := strings.ToLower(strings.TrimSpace(in.GameType))
	window, ok := GameCooldown(gameType)
	if !ok {
		return nil, errutil.Validation("invalid game_type %q", in.GameType)
	}

	country := e.resolveCountry(in.Country, user.Country)
	adType := adTypeFor(in.WatchAgain)
	cpm := e.cpm.Lookup(country, adType)

	pol, err := e.runtimePolicy(e.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	revenue := dec(0)
	if in.AdWatched {
		revenue = dec(cpm).Div(dec(1000))
	}
	earned := revenue.Mul(dec(pol.UserShare)).Round(usdPlaces)
	liquidity := revenue.Sub(earned)
	winTokens := earned.Mul(dec(pol.WinPerUSD))

	now := e.now()
	event := models.RevenueEvent{
		UserID:     user.ID,
		Kind:       models.EventKindGame,
		GameType:   gameType,
		AdType:     adType,
		AdWatched:  in.AdWatched,
		WatchAgain: in.WatchAgain,
		Country:    country,
		CPMUSD:     cpm,
		RevenueUSD: usdFloat(revenue),
		EarnedUSD:  usdFloat(earned),
		Liquidity:  usdFloat(liquidity),
		WinTokens:  winFloat(winTokens),
		SharePct:   pol.UserShare,
		CreatedAt:  now,
		Metadata: datatypes.JSONMap{
			"tier": CountryTier(country),
		},
	}

	result := &PlayResult{
		GameType:        gameType,
		AdWatched:       in.AdWatched,
		EarnedUSD:       event.EarnedUSD,
		TotalRevenueUSD: event.RevenueUSD,
		LiquidityUSD:    event.Liquidity,
		WinTokens:       roundWin(event.WinTokens),
		GeoInfo:         geoInfo(country, adType, cpm),
		CooldownSeconds: int(window.Seconds()),
	}

	acquired := false
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureBalance(tx, user.ID, now); err != nil {
			return err
		}
		if _, err := lockBalance(tx, user.ID); err != nil {
			return err
		}

		remaining, err := e.cooldown.Acquire(ctx, tx, user.ID, gameType, window, now)
		if err != nil {
			return err
		}
		if remaining > 0 {
			observability.CooldownRejections.WithLabelValues(gameType).Inc()
			secs := int(math.Ceil(remaining.Seconds()))
			return errutil.RateLimited(fmt.Sprintf("%s cooldown active, retry in %ds", gameType, secs), remaining)
		}
		acquired = true

		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		if err := creditPending(tx, user.ID, pendingCredit{amount: event.EarnedUSD, games: 1}, now); err != nil {
			return err
		}

		if user.ReferredBy != nil && event.EarnedUSD > 0 {
			if err := e.creditReferrer(tx, pol, *user.ReferredBy, user.ID, earned, event.ID, now); err != nil {
				return err
			}
		}

		var bal models.UserBalance
		if err := tx.Select("pending_revenue_usd").Where("user_id = ?", user.ID).Take(&bal).Error; err != nil {
			return err
		}
		result.PendingRevenueUSD = roundUSD(bal.PendingRevenueUSD)
		return nil
	})
	if err != nil {
		if r, ok := e.cooldown.(releaser); ok && acquired {
			if rerr := r.Release(context.WithoutCancel(ctx), user.ID, gameType); rerr != nil {
				e.log.Warn("release cooldown", zap.Uint("user_id", user.ID), zap.Error(rerr))
			}
		}
		return nil, err
	}

	result.EventID = event.ID
	observability.EventsIngested.WithLabelValues(models.EventKindGame, gameType).Inc()
	return result, nil
}

func (e *Engine) creditReferrer(tx *gorm.DB, pol config.Policy, referrerID, sourceID uint, earned decimal.Decimal, sourceEvent string, now time.Time) error {
	bonus := usdFloat(earned.Mul(dec(pol.ReferralShare)))
	if bonus <= 0 {
		return nil
	}
	if err := ensureBalance(tx, referrerID, now); err != nil {
		return err
	}
	if err := creditPending(tx, referrerID, pendingCredit{amount: bonus, referral: true}, now); err != nil {
		return err
	}

	src := sourceID
	ev := models.RevenueEvent{
		UserID:     referrerID,
		Kind:       models.EventKindReferral,
		RevenueUSD: bonus,
		EarnedUSD:  bonus,
		WinTokens:  winFloat(dec(bonus).Mul(dec(pol.WinPerUSD))),
		SharePct:   pol.ReferralShare,
		SourceUser: &src,
		CreatedAt:  now,
		Metadata:   datatypes.JSONMap{"source_event": sourceEvent},
	}
	if err := tx.Create(&ev).Error; err != nil {
		return err
	}
	observability.EventsIngested.WithLabelValues(models.EventKindReferral, "").Inc()
	return nil
}

func (e *Engine) resolveCountry(candidates ...string) string {
	for _, c := range candidates {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) == 2 && c != "XX" && c != "T1" {
			return c
		}
	}
	return e.defaultCountry
}

type GameSession struct {
	ID         string    `json:"id"`
	GameType   string    `json:"game_type"`
	AdWatched  bool      `json:"ad_watched"`
	EarnedUSD  float64   `json:"earned_usd"`
	RevenueUSD float64   `json:"revenue_usd"`
	WinTokens  float64   `json:"win_tokens"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
}

func (e *Engine) GameHistory(ctx context.Context, userID uint, limit int) ([]GameSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var events []models.RevenueEvent
	if err := e.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, models.EventKindGame).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}

	sessions := make([]GameSession, 0, len(events))
	for _, ev := range events {
		sessions = append(sessions, GameSession{
			ID:         ev.ID,
			GameType:   ev.GameType,
			AdWatched:  ev.AdWatched,
			EarnedUSD:  ev.EarnedUSD,
			RevenueUSD: ev.RevenueUSD,
			WinTokens:  roundWin(ev.WinTokens),
			Country:    ev.Country,
			CreatedAt:  ev.CreatedAt,
		})
	}
	return sessions, nil
}
