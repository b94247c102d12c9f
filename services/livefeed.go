package services

import (
	"context"
	"time"

	"winledger/models"
)

type ActivityUserStats struct {
	TotalEarnings float64 `json:"total_earnings"`
	Rank          int64   `json:"rank"`
	GamesPlayed   int64   `json:"games_played"`
}

type Activity struct {
	ID        string            `json:"id"`
	User      string            `json:"user"`
	GameType  string            `json:"game_type"`
	Amount    float64           `json:"amount"`
	WinTokens float64           `json:"win_tokens"`
	Result    string            `json:"result"`
	Timestamp time.Time         `json:"timestamp"`
	UserStats ActivityUserStats `json:"user_stats"`
}

// LiveFeed returns recent rewarded plays, newest first. Pollers pass the
// timestamp of the newest item they hold as since and dedupe by id.
func (e *Engine) LiveFeed(ctx context.Context, limit int, since time.Time) ([]Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := e.db.WithContext(ctx)

	q := db.Where("kind = ? AND ad_watched = ? AND earned_usd > 0", models.EventKindGame, true)
	if !since.IsZero() {
		q = q.Where("created_at > ?", since.UTC())
	}

	var events []models.RevenueEvent
	if err := q.Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []Activity{}, nil
	}

	ids := make([]uint, 0, len(events))
	seen := make(map[uint]bool)
	for _, ev := range events {
		if !seen[ev.UserID] {
			seen[ev.UserID] = true
			ids = append(ids, ev.UserID)
		}
	}

	var users []models.User
	if err := db.Select("id", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	emails := make(map[uint]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}

	var ranked []struct {
		UserID           uint
		TotalEarningsUSD float64
		GamesPlayed      int64
		Rnk              int64
	}
	err := db.Raw(`SELECT user_id, total_earnings_usd, games_played, rnk FROM (
		SELECT user_id, total_earnings_usd, games_played,
			RANK() OVER (ORDER BY total_earnings_usd DESC) AS rnk
		FROM user_balances
	) ranked WHERE user_id IN ?`, ids).Scan(&ranked).Error
	if err != nil {
		return nil, err
	}
	stats := make(map[uint]ActivityUserStats, len(ranked))
	for _, r := range ranked {
		stats[r.UserID] = ActivityUserStats{
			TotalEarnings: roundUSD(r.TotalEarningsUSD),
			Rank:          r.Rnk,
			GamesPlayed:   r.GamesPlayed,
		}
	}

	out := make([]Activity, 0, len(events))
	for _, ev := range events {
		out = append(out, Activity{
			ID:        ev.ID,
			User:      MaskEmail(emails[ev.UserID]),
			GameType:  ev.GameType,
			Amount:    ev.EarnedUSD,
			WinTokens: roundWin(ev.WinTokens),
			Result:    "won",
			Timestamp: ev.CreatedAt,
			UserStats: stats[ev.UserID],
		})
	}
	return out, nil
}
